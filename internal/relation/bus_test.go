package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balbirthomas/operator/internal/store"
)

func TestBus_WriteRequiresLeadership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rel := addRelation(t, s, consumerApp)
	gate := &leader{}
	bus := NewBus(s, gate, providerApp)

	err := bus.WriteApplicationData(ctx, rel.ID, "provider_data", "{}")
	require.Error(t, err)
	assert.True(t, IsNotLeader(err))

	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, rel.ID, we.RelationID)
	assert.Equal(t, "provider_data", we.Field)

	_, ok, err := s.ReadApplicationData(ctx, rel.ID, providerApp)
	require.NoError(t, err)
	assert.False(t, ok, "refused write must not touch the bus")

	gate.is = true
	require.NoError(t, bus.WriteApplicationData(ctx, rel.ID, "provider_data", "{}"))

	data, ok, err := bus.ReadApplicationData(ctx, rel.ID, providerApp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "{}", data["provider_data"])
}

func TestBus_GateQueriedOnEveryWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rel := addRelation(t, s, consumerApp)

	calls := 0
	bus := NewBus(s, LeaderFunc(func() bool {
		calls++
		return calls == 1
	}), providerApp)

	require.NoError(t, bus.WriteApplicationData(ctx, rel.ID, "f", "1"))
	assert.True(t, IsNotLeader(bus.WriteApplicationData(ctx, rel.ID, "f", "2")))
	assert.Equal(t, 2, calls)
}

func TestBus_RelationsSkipsBroken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rel1 := addRelation(t, s, "a")
	rel2 := addRelation(t, s, "b")
	require.NoError(t, s.MarkRelationBroken(ctx, rel1.ID))

	bus := NewBus(s, &leader{}, providerApp)
	rels, err := bus.Relations(ctx, "service")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, rel2, rels[0])
}

func TestBus_BackendErrorsWrapped(t *testing.T) {
	bus := NewBus(failingBackend{err: errBackend}, &leader{is: true}, providerApp)
	ctx := context.Background()

	_, _, err := bus.ReadApplicationData(ctx, 1, consumerApp)
	assert.ErrorIs(t, err, errBackend)

	err = bus.WriteApplicationData(ctx, 1, "f", "v")
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, IsNotLeader(err))

	_, err = bus.Relations(ctx, "service")
	assert.ErrorIs(t, err, errBackend)
}

func TestBus_StoreSatisfiesBackend(t *testing.T) {
	var _ Backend = (*store.Store)(nil)
}

func TestBus_Broken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rel := addRelation(t, s, consumerApp)
	bus := NewBus(s, &leader{}, providerApp)

	broken, err := bus.Broken(ctx, rel.ID)
	require.NoError(t, err)
	assert.False(t, broken)

	require.NoError(t, s.MarkRelationBroken(ctx, rel.ID))
	broken, err = bus.Broken(ctx, rel.ID)
	require.NoError(t, err)
	assert.True(t, broken)

	_, err = bus.Broken(ctx, 99)
	assert.ErrorIs(t, err, store.ErrRelationNotFound)

	_, err = NewBus(failingBackend{err: errBackend}, &leader{}, providerApp).Broken(ctx, rel.ID)
	assert.ErrorIs(t, err, errBackend)
}
