package relation

import (
	"context"
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/store"
)

// LeadershipGate answers whether the local unit is currently the elected
// leader of its application. The answer may change between calls.
type LeadershipGate interface {
	IsLeader() bool
}

// LeaderFunc adapts a function to LeadershipGate.
type LeaderFunc func() bool

// IsLeader implements LeadershipGate.
func (f LeaderFunc) IsLeader() bool { return f() }

// Backend is the storage behind a Bus. *store.Store satisfies it.
type Backend interface {
	ReadApplicationData(ctx context.Context, relationID int, app string) (map[string]string, bool, error)
	WriteApplicationData(ctx context.Context, relationID int, app, field, value string) error
	ListRelations(ctx context.Context, name string) ([]ir.RelationDescriptor, error)
	ReadRelation(ctx context.Context, relationID int) (store.Relation, error)
}

var _ Backend = (*store.Store)(nil)

// Bus is the relation key/value bus as seen from one application.
//
// Reads may target any application scope on a relation instance. Writes always
// go to the local application's scope and require leadership at call time.
type Bus struct {
	backend Backend
	gate    LeadershipGate
	app     string
}

// NewBus creates a bus view for localApp.
func NewBus(backend Backend, gate LeadershipGate, localApp string) *Bus {
	return &Bus{backend: backend, gate: gate, app: localApp}
}

// App returns the local application name.
func (b *Bus) App() string { return b.app }

// IsLeader queries the leadership gate.
func (b *Bus) IsLeader() bool { return b.gate.IsLeader() }

// ReadApplicationData returns app's bucket on the relation instance. The
// boolean is false when app never wrote anything there.
func (b *Bus) ReadApplicationData(ctx context.Context, relationID int, app string) (map[string]string, bool, error) {
	data, ok, err := b.backend.ReadApplicationData(ctx, relationID, app)
	if err != nil {
		return nil, false, fmt.Errorf("read %s data on relation %d: %w", app, relationID, err)
	}
	return data, ok, nil
}

// WriteApplicationData sets field in the local application's bucket.
// Returns a *WriteError with reason WriteNotLeader if the gate is closed.
func (b *Bus) WriteApplicationData(ctx context.Context, relationID int, field, value string) error {
	if !b.gate.IsLeader() {
		return &WriteError{Reason: WriteNotLeader, RelationID: relationID, Field: field}
	}
	if err := b.backend.WriteApplicationData(ctx, relationID, b.app, field, value); err != nil {
		return fmt.Errorf("write %s on relation %d: %w", field, relationID, err)
	}
	return nil
}

// Relations lists the live instances of the named relation in id order.
func (b *Bus) Relations(ctx context.Context, name string) ([]ir.RelationDescriptor, error) {
	rels, err := b.backend.ListRelations(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list %s relations: %w", name, err)
	}
	return rels, nil
}

// Broken reports whether the relation instance has been torn down. The flag
// is persisted, so it holds across processes sharing the backend.
func (b *Bus) Broken(ctx context.Context, relationID int) (bool, error) {
	rel, err := b.backend.ReadRelation(ctx, relationID)
	if err != nil {
		return false, fmt.Errorf("read relation %d: %w", relationID, err)
	}
	return rel.Broken, nil
}
