package store

import (
	"context"
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
)

// EventRecord is one entry of an application observer's event log.
type EventRecord struct {
	ID         int64          `json:"id"`
	App        string         `json:"app"`
	RelationID int            `json:"relation_id"`
	Kind       string         `json:"kind"`
	Data       map[string]any `json:"data"`
	Seq        int64          `json:"seq"`
}

// CreateRelation registers a new relation instance and returns its descriptor
// with the allocated id.
func (s *Store) CreateRelation(ctx context.Context, name, iface, remoteApp string) (ir.RelationDescriptor, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (name, interface, remote_app)
		VALUES (?, ?, ?)
	`, name, iface, remoteApp)
	if err != nil {
		return ir.RelationDescriptor{}, fmt.Errorf("create relation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return ir.RelationDescriptor{}, fmt.Errorf("create relation: last insert id: %w", err)
	}

	return ir.RelationDescriptor{
		ID:        int(id),
		Name:      name,
		Interface: iface,
		RemoteApp: remoteApp,
	}, nil
}

// AddRelationUnit records that a remote unit joined the relation instance.
// Re-adding the same unit is a no-op.
//
// Note: The relation must exist (foreign key constraint).
func (s *Store) AddRelationUnit(ctx context.Context, relationID int, unit string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relation_units (relation_id, unit)
		VALUES (?, ?)
		ON CONFLICT(relation_id, unit) DO NOTHING
	`, relationID, unit)
	if err != nil {
		return fmt.Errorf("add relation unit: %w", err)
	}
	return nil
}

// MarkRelationBroken flags the relation instance as torn down.
// Broken relations are excluded from ListRelations; their data is kept.
// Returns ErrRelationNotFound if the id is unknown.
func (s *Store) MarkRelationBroken(ctx context.Context, relationID int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE relations SET broken = 1 WHERE id = ?
	`, relationID)
	if err != nil {
		return fmt.Errorf("mark relation broken: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark relation broken: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark relation broken %d: %w", relationID, ErrRelationNotFound)
	}
	return nil
}

// WriteApplicationData upserts one field under an application scope.
// The previous value is replaced (last-write-wins, no history) and the
// field's revision is incremented.
//
// The store does not check leadership; callers go through relation.Bus.
func (s *Store) WriteApplicationData(ctx context.Context, relationID int, app, field, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO application_data (relation_id, app, field, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(relation_id, app, field) DO UPDATE SET
			value = excluded.value,
			revision = application_data.revision + 1
	`, relationID, app, field, value)
	if err != nil {
		return fmt.Errorf("write application data: %w", err)
	}
	return nil
}

// DeleteApplicationData removes one field from an application scope.
// Deleting a missing field is a no-op.
func (s *Store) DeleteApplicationData(ctx context.Context, relationID int, app, field string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM application_data
		WHERE relation_id = ? AND app = ? AND field = ?
	`, relationID, app, field)
	if err != nil {
		return fmt.Errorf("delete application data: %w", err)
	}
	return nil
}

// AppendEvent appends an entry to an application's event log and returns its id.
func (s *Store) AppendEvent(ctx context.Context, rec EventRecord) (int64, error) {
	dataJSON, err := marshalEventData(rec.Data)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO event_log (app, relation_id, kind, data, seq)
		VALUES (?, ?, ?, ?, ?)
	`, rec.App, rec.RelationID, rec.Kind, dataJSON, rec.Seq)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return id, nil
}
