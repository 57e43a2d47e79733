package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/balbirthomas/operator/internal/config"
	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/event"
	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/relation"
	"github.com/balbirthomas/operator/internal/store"
	"github.com/balbirthomas/operator/internal/testutil"
)

// Harness hosts one application (provider or consumer side) in process and
// lets a test drive the relation lifecycle around it: adding relations and
// units, changing the remote application's data, upgrades, leadership and
// teardown. Every lifecycle call is dispatched synchronously through the
// trigger engine, so its effects are visible as soon as the call returns.
type Harness struct {
	role     *config.RoleConfig
	store    *store.Store
	ownStore bool
	leader   bool

	engine   *engine.Engine
	clock    *testutil.DeterministicClock
	provider *relation.Provider
	consumer *relation.Consumer

	events event.Log
	logs   *testutil.RecordingHandler
	logger *slog.Logger
	trace  []TraceEntry

	// persistErr holds the first failure to persist an event.
	persistErr error
}

// Option configures a Harness.
type Option func(*harnessOptions)

type harnessOptions struct {
	store  *store.Store
	next   slog.Handler
	ids    engine.TriggerIDGenerator
	leader bool
}

// WithStore runs against an existing store instead of a fresh in-memory one.
// The caller keeps ownership.
func WithStore(s *store.Store) Option {
	return func(o *harnessOptions) { o.store = s }
}

// WithLogHandler forwards log records to h in addition to recording them.
func WithLogHandler(h slog.Handler) Option {
	return func(o *harnessOptions) { o.next = h }
}

// WithIDGenerator sets the trigger ID generator (default sequential "trigger-N").
func WithIDGenerator(g engine.TriggerIDGenerator) Option {
	return func(o *harnessOptions) { o.ids = g }
}

// WithLeader sets the initial leadership of the local unit (default false).
func WithLeader(leader bool) Option {
	return func(o *harnessOptions) { o.leader = leader }
}

// New creates a harness for the application described by role.
func New(role *config.RoleConfig, opts ...Option) (*Harness, error) {
	if errs := role.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid role: %w", errs)
	}

	o := harnessOptions{ids: engine.NewSequentialGenerator("trigger")}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Harness{
		role:   role,
		store:  o.store,
		leader: o.leader,
		clock:  testutil.NewDeterministicClock(),
		logs:   testutil.NewRecordingHandler(slog.LevelDebug, o.next),
	}
	if h.store == nil {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		h.store = st
		h.ownStore = true
	}
	h.logger = slog.New(h.logs)

	h.engine = engine.New(
		engine.WithClock(h.clock),
		engine.WithIDGenerator(o.ids),
		engine.WithLogger(h.logger),
	)
	h.engine.Register(engine.HandlerFunc{Label: "harness", Fn: h.observeTrigger})

	bus := relation.NewBus(&tracingBackend{Backend: h.store, h: h}, relation.LeaderFunc(h.IsLeader), role.App)
	switch role.Role {
	case config.RoleProvider:
		h.provider = relation.NewProvider(bus, role.Relation.Name, role.CapabilitySet(),
			relation.WithReady(role.Ready),
			relation.WithConfig(role.Config),
			relation.WithProviderLogger(h.logger),
		)
		h.engine.Register(h.provider)
	case config.RoleConsumer:
		h.consumer = relation.NewConsumer(bus, role.Relation.Name, role.CapabilitySet(),
			relation.WithConsumerLogger(h.logger),
		)
		h.consumer.On().SubscribeAll(h.recordEvent)
		h.engine.Register(h.consumer)
	}
	return h, nil
}

// Close releases the store if the harness opened it.
func (h *Harness) Close() error {
	if h.ownStore {
		return h.store.Close()
	}
	return nil
}

// App returns the local application name.
func (h *Harness) App() string { return h.role.App }

// Store returns the backing store.
func (h *Harness) Store() *store.Store { return h.store }

// Provider returns the hosted provider, or nil for a consumer application.
func (h *Harness) Provider() *relation.Provider { return h.provider }

// Consumer returns the hosted consumer, or nil for a provider application.
func (h *Harness) Consumer() *relation.Consumer { return h.consumer }

// IsLeader reports the simulated leadership of the local unit.
func (h *Harness) IsLeader() bool { return h.leader }

// SetLeader changes leadership. Gaining it dispatches leader-elected.
func (h *Harness) SetLeader(ctx context.Context, leader bool) error {
	was := h.leader
	h.leader = leader
	if leader && !was {
		return h.dispatch(ctx, engine.Trigger{Kind: engine.TriggerLeaderElected})
	}
	return nil
}

// AddRelation establishes a relation instance with remoteApp and returns its
// id. No trigger fires until a unit joins.
func (h *Harness) AddRelation(ctx context.Context, name, remoteApp string) (int, error) {
	iface := ""
	if name == h.role.Relation.Name {
		iface = h.role.Relation.Interface
	}
	rel, err := h.store.CreateRelation(ctx, name, iface, remoteApp)
	if err != nil {
		return 0, err
	}
	return rel.ID, nil
}

// AddRelationUnit adds a remote unit and dispatches relation-joined.
func (h *Harness) AddRelationUnit(ctx context.Context, relationID int, unit string) error {
	rel, err := h.liveRelation(ctx, relationID)
	if err != nil {
		return err
	}
	if err := h.store.AddRelationUnit(ctx, relationID, unit); err != nil {
		return err
	}
	return h.dispatch(ctx, engine.Trigger{Kind: engine.TriggerRelationJoined, Relation: rel, Unit: unit})
}

// UpdateRelationData writes fields into app's bucket on the relation, as if
// app's leader had written them, and dispatches relation-changed. An empty
// value deletes the field.
func (h *Harness) UpdateRelationData(ctx context.Context, relationID int, app string, data map[string]string) error {
	rel, err := h.liveRelation(ctx, relationID)
	if err != nil {
		return err
	}
	for _, field := range slices.Sorted(maps.Keys(data)) {
		value := data[field]
		if value == "" {
			err = h.store.DeleteApplicationData(ctx, relationID, app, field)
		} else {
			err = h.store.WriteApplicationData(ctx, relationID, app, field, value)
		}
		if err != nil {
			return err
		}
	}
	return h.dispatch(ctx, engine.Trigger{Kind: engine.TriggerRelationChanged, Relation: rel, App: app})
}

// RelationData returns app's bucket on the relation (empty if never written).
func (h *Harness) RelationData(ctx context.Context, relationID int, app string) (map[string]string, error) {
	data, ok, err := h.store.ReadApplicationData(ctx, relationID, app)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	return data, nil
}

// ProviderPayload decodes the local application's provider_data on a
// relation. The boolean is false when nothing was published.
func (h *Harness) ProviderPayload(ctx context.Context, relationID int) (ir.ProviderPayload, bool, error) {
	data, err := h.RelationData(ctx, relationID, h.role.App)
	if err != nil {
		return ir.ProviderPayload{}, false, err
	}
	raw, ok := data[ir.ProviderDataField]
	if !ok {
		return ir.ProviderPayload{}, false, nil
	}
	p, err := relation.DecodePayload(raw)
	if err != nil {
		return ir.ProviderPayload{}, false, err
	}
	return p, true, nil
}

// RemoveRelation dispatches relation-broken and then marks the instance broken.
func (h *Harness) RemoveRelation(ctx context.Context, relationID int) error {
	rel, err := h.liveRelation(ctx, relationID)
	if err != nil {
		return err
	}
	if err := h.dispatch(ctx, engine.Trigger{Kind: engine.TriggerRelationBroken, Relation: rel}); err != nil {
		return err
	}
	return h.store.MarkRelationBroken(ctx, relationID)
}

// Upgrade dispatches the upgrade trigger.
func (h *Harness) Upgrade(ctx context.Context) error {
	return h.dispatch(ctx, engine.Trigger{Kind: engine.TriggerUpgrade})
}

// Events returns every event the consumer emitted, oldest first.
func (h *Harness) Events() []event.Event { return h.events.Events() }

// PopEvent removes and returns the oldest recorded event.
func (h *Harness) PopEvent() (event.Event, bool) { return h.events.Pop() }

// PersistedEvents returns the events written to the store's event log.
func (h *Harness) PersistedEvents(ctx context.Context) ([]store.EventRecord, error) {
	return h.store.ReadEvents(ctx, h.role.App)
}

// ErrorLogCount returns the number of error-level log records so far.
func (h *Harness) ErrorLogCount() int { return h.logs.Count(slog.LevelError) }

// LogRecords returns every captured log record.
func (h *Harness) LogRecords() []testutil.LogRecord { return h.logs.Records() }

// Trace returns the observable steps recorded so far.
func (h *Harness) Trace() []TraceEntry {
	return append([]TraceEntry(nil), h.trace...)
}

func (h *Harness) liveRelation(ctx context.Context, relationID int) (ir.RelationDescriptor, error) {
	rel, err := h.store.ReadRelation(ctx, relationID)
	if err != nil {
		return ir.RelationDescriptor{}, err
	}
	if rel.Broken {
		return ir.RelationDescriptor{}, fmt.Errorf("relation %s is broken", rel.RelationDescriptor)
	}
	return rel.RelationDescriptor, nil
}

func (h *Harness) dispatch(ctx context.Context, t engine.Trigger) error {
	_, err := h.engine.Dispatch(ctx, t)
	if err != nil {
		return err
	}
	if h.persistErr != nil {
		err, h.persistErr = h.persistErr, nil
		return err
	}
	return nil
}

// observeTrigger runs before the application's handler for every trigger.
func (h *Harness) observeTrigger(_ context.Context, t engine.Trigger) error {
	entry := TraceEntry{Type: TraceTypeTrigger, Seq: t.Seq, Kind: string(t.Kind)}
	if t.Kind.RelationScoped() {
		entry.Relation = t.Relation.String()
	}
	switch {
	case t.Unit != "":
		entry.Data = map[string]any{"unit": t.Unit}
	case t.App != "":
		entry.Data = map[string]any{"app": t.App}
	}
	h.trace = append(h.trace, entry)
	return nil
}

func (h *Harness) recordEvent(ev event.Event) {
	h.events.Record(ev)
	h.trace = append(h.trace, TraceEntry{
		Type:     TraceTypeEvent,
		Seq:      h.clock.Current(),
		Kind:     ev.Kind().Short(),
		Relation: ev.Relation().String(),
		Data:     event.Data(ev),
	})

	_, err := h.store.AppendEvent(context.Background(), store.EventRecord{
		App:        h.role.App,
		RelationID: ev.Relation().ID,
		Kind:       ev.Kind().Short(),
		Data:       event.Data(ev),
		Seq:        h.clock.Current(),
	})
	if err != nil && h.persistErr == nil {
		h.persistErr = fmt.Errorf("persist %s event: %w", ev.Kind(), err)
	}
}

// tracingBackend records the application's own bus writes in the trace.
type tracingBackend struct {
	relation.Backend
	h *Harness
}

func (b *tracingBackend) WriteApplicationData(ctx context.Context, relationID int, app, field, value string) error {
	if err := b.Backend.WriteApplicationData(ctx, relationID, app, field, value); err != nil {
		return err
	}
	rel, err := b.h.store.ReadRelation(ctx, relationID)
	if err != nil {
		return err
	}
	b.h.trace = append(b.h.trace, TraceEntry{
		Type:     TraceTypePublish,
		Seq:      b.h.clock.Current(),
		Relation: rel.RelationDescriptor.String(),
		Data:     map[string]any{"field": field, "value": value},
	})
	return nil
}
