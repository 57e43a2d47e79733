package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/store"
)

type providerFixture struct {
	store    *store.Store
	gate     *leader
	provider *Provider
}

func newProviderFixture(t *testing.T, opts ...ProviderOption) *providerFixture {
	t.Helper()
	s := openTestStore(t)
	gate := &leader{is: true}
	logger, _ := testLogger()
	opts = append([]ProviderOption{WithProviderLogger(logger)}, opts...)
	p := NewProvider(NewBus(s, gate, providerApp), "service", ir.CapabilitySet{"TestService": "1.0.0"}, opts...)
	return &providerFixture{store: s, gate: gate, provider: p}
}

func (f *providerFixture) payload(t *testing.T, rel ir.RelationDescriptor) (ir.ProviderPayload, bool) {
	t.Helper()
	data, ok, err := f.store.ReadApplicationData(context.Background(), rel.ID, providerApp)
	require.NoError(t, err)
	if !ok {
		return ir.ProviderPayload{}, false
	}
	p, err := DecodePayload(data[ir.ProviderDataField])
	require.NoError(t, err)
	return p, true
}

func (f *providerFixture) join(t *testing.T, rel ir.RelationDescriptor) {
	t.Helper()
	err := f.provider.HandleTrigger(context.Background(), engine.Trigger{
		Kind:     engine.TriggerRelationJoined,
		Relation: rel,
		Unit:     rel.RemoteApp + "/0",
	})
	require.NoError(t, err)
}

func TestProvider_PostsDataOnJoin(t *testing.T) {
	f := newProviderFixture(t)
	rel := addRelation(t, f.store, "aservice")

	f.join(t, rel)

	p, ok := f.payload(t, rel)
	require.True(t, ok)
	assert.Equal(t, ir.CapabilitySet{"TestService": "1.0.0"}, p.Provides)
	assert.False(t, p.Ready, "ready defaults to false")
	assert.Equal(t, "", p.Config)
}

func TestProvider_ReadyToggle(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	rel := addRelation(t, f.store, "aservice")
	f.join(t, rel)

	require.NoError(t, f.provider.Ready(ctx))
	p, _ := f.payload(t, rel)
	assert.True(t, p.Ready)
	assert.True(t, f.provider.IsReady())

	require.NoError(t, f.provider.Unready(ctx))
	p, _ = f.payload(t, rel)
	assert.False(t, p.Ready)
}

func TestProvider_UpgradeRepublishes(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	rel := addRelation(t, f.store, "aservice")
	f.join(t, rel)

	// Local state changes without publishing, as after a code upgrade.
	f.provider.capabilities = ir.CapabilitySet{"TestService": "2.0.0"}
	p, _ := f.payload(t, rel)
	assert.Equal(t, "1.0.0", p.Provides["TestService"])

	require.NoError(t, f.provider.HandleTrigger(ctx, engine.Trigger{Kind: engine.TriggerUpgrade}))

	p, _ = f.payload(t, rel)
	assert.Equal(t, ir.CapabilitySet{"TestService": "2.0.0"}, p.Provides)
}

func TestProvider_NonLeaderNeverWrites(t *testing.T) {
	f := newProviderFixture(t, WithReady(true), WithConfig("tok"))
	ctx := context.Background()
	f.gate.is = false
	rel := addRelation(t, f.store, "aservice")

	f.join(t, rel)
	require.NoError(t, f.provider.Ready(ctx))
	require.NoError(t, f.provider.SetCapability(ctx, "Other", "1"))
	require.NoError(t, f.provider.SetConfig(ctx, "x"))
	require.NoError(t, f.provider.HandleTrigger(ctx, engine.Trigger{Kind: engine.TriggerUpgrade}))

	_, ok := f.payload(t, rel)
	assert.False(t, ok, "non-leader must never write provider_data")

	// Becoming leader publishes the accumulated state.
	f.gate.is = true
	require.NoError(t, f.provider.HandleTrigger(ctx, engine.Trigger{Kind: engine.TriggerLeaderElected}))
	p, ok := f.payload(t, rel)
	require.True(t, ok)
	assert.Equal(t, ir.ProviderPayload{
		Provides: ir.CapabilitySet{"TestService": "1.0.0", "Other": "1"},
		Ready:    true,
		Config:   "x",
	}, p)
}

func TestProvider_LeadershipLostMidPublish(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rel := addRelation(t, s, "aservice")

	// Leader for the pre-check only; the write re-checks and is refused.
	calls := 0
	gate := LeaderFunc(func() bool {
		calls++
		return calls == 1
	})
	logger, buf := testLogger()
	p := NewProvider(NewBus(s, gate, providerApp), "service", ir.CapabilitySet{"a": "1"}, WithProviderLogger(logger))

	require.NoError(t, p.Publish(ctx))
	_, ok, err := s.ReadApplicationData(ctx, rel.ID, providerApp)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "publish skipped: not leader")
}

func TestProvider_PublishesToEveryLiveRelation(t *testing.T) {
	f := newProviderFixture(t, WithConfig("provider_config"))
	ctx := context.Background()
	rel1 := addRelation(t, f.store, "aservice")
	rel2 := addRelation(t, f.store, "bservice")
	broken := addRelation(t, f.store, "cservice")
	require.NoError(t, f.store.MarkRelationBroken(ctx, broken.ID))
	other, err := f.store.CreateRelation(ctx, "db", "pgsql", "postgres")
	require.NoError(t, err)

	require.NoError(t, f.provider.Publish(ctx))

	for _, rel := range []ir.RelationDescriptor{rel1, rel2} {
		p, ok := f.payload(t, rel)
		require.True(t, ok, "relation %s", rel)
		assert.Equal(t, "provider_config", p.Config)
	}
	_, ok := f.payload(t, broken)
	assert.False(t, ok)
	_, ok = f.payload(t, other)
	assert.False(t, ok, "other relation names are untouched")
}

func TestProvider_IdenticalStateIdenticalBytes(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	rel := addRelation(t, f.store, "aservice")

	require.NoError(t, f.provider.Publish(ctx))
	first, _, err := f.store.ReadApplicationData(ctx, rel.ID, providerApp)
	require.NoError(t, err)

	require.NoError(t, f.provider.SetCapabilities(ctx, ir.CapabilitySet{"TestService": "1.0.0"}))
	second, _, err := f.store.ReadApplicationData(ctx, rel.ID, providerApp)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProvider_IgnoresUnrelatedTriggers(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	rel := addRelation(t, f.store, "aservice")
	other := rel
	other.Name = "db"

	require.NoError(t, f.provider.HandleTrigger(ctx, engine.Trigger{Kind: engine.TriggerRelationJoined, Relation: other}))
	require.NoError(t, f.provider.HandleTrigger(ctx, changed(rel)))
	require.NoError(t, f.provider.HandleTrigger(ctx, engine.Trigger{Kind: engine.TriggerRelationBroken, Relation: rel}))

	_, ok := f.payload(t, rel)
	assert.False(t, ok)
}

func TestProvider_SetCapabilityRejectsEmptyName(t *testing.T) {
	f := newProviderFixture(t)
	assert.Error(t, f.provider.SetCapability(context.Background(), "", "1"))
}

func TestProvider_BackendFailurePropagates(t *testing.T) {
	p := NewProvider(NewBus(failingBackend{err: errBackend}, &leader{is: true}, providerApp), "service", nil)

	assert.ErrorIs(t, p.Publish(context.Background()), errBackend)
	err := p.HandleTrigger(context.Background(), engine.Trigger{
		Kind:     engine.TriggerRelationJoined,
		Relation: ir.RelationDescriptor{ID: 1, Name: "service"},
	})
	assert.ErrorIs(t, err, errBackend)
}

func TestProvider_PublishLogsPayloadDigest(t *testing.T) {
	s := openTestStore(t)
	logger, buf := testLogger()
	p := NewProvider(NewBus(s, &leader{is: true}, providerApp), "service",
		ir.CapabilitySet{"TestService": "1.0.0"}, WithProviderLogger(logger))
	addRelation(t, s, "aservice")

	require.NoError(t, p.Publish(context.Background()))

	digest, err := ir.PayloadDigest(p.Payload())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "digest="+ir.ShortDigest(digest))
}
