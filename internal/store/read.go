package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
)

// Relation is a stored relation instance with its lifecycle flag.
type Relation struct {
	ir.RelationDescriptor
	Broken bool `json:"broken"`
}

// ReadRelation retrieves a relation instance by id, broken or not.
// Returns ErrRelationNotFound if the id is unknown.
func (s *Store) ReadRelation(ctx context.Context, relationID int) (Relation, error) {
	var rel Relation
	var broken int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, interface, remote_app, broken
		FROM relations
		WHERE id = ?
	`, relationID).Scan(&rel.ID, &rel.Name, &rel.Interface, &rel.RemoteApp, &broken)
	if errors.Is(err, sql.ErrNoRows) {
		return Relation{}, fmt.Errorf("read relation %d: %w", relationID, ErrRelationNotFound)
	}
	if err != nil {
		return Relation{}, fmt.Errorf("read relation %d: %w", relationID, err)
	}
	rel.Broken = broken != 0
	return rel, nil
}

// ListRelations returns live (not broken) relation instances with the given
// name, ordered by id. An empty name lists every live relation.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListRelations(ctx context.Context, name string) ([]ir.RelationDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, interface, remote_app
		FROM relations
		WHERE broken = 0 AND (? = '' OR name = ?)
		ORDER BY id ASC
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	relations := []ir.RelationDescriptor{}
	for rows.Next() {
		var rel ir.RelationDescriptor
		if err := rows.Scan(&rel.ID, &rel.Name, &rel.Interface, &rel.RemoteApp); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}

	return relations, nil
}

// ReadRelationUnits returns the units that joined a relation instance, sorted.
func (s *Store) ReadRelationUnits(ctx context.Context, relationID int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit FROM relation_units
		WHERE relation_id = ?
		ORDER BY unit COLLATE BINARY ASC
	`, relationID)
	if err != nil {
		return nil, fmt.Errorf("query relation units: %w", err)
	}
	defer rows.Close()

	units := []string{}
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, fmt.Errorf("scan relation unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relation units: %w", err)
	}
	return units, nil
}

// ReadApplicationData returns every field an application published on a
// relation instance. The boolean is false when the application never wrote
// anything there.
func (s *Store) ReadApplicationData(ctx context.Context, relationID int, app string) (map[string]string, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, value FROM application_data
		WHERE relation_id = ? AND app = ?
	`, relationID, app)
	if err != nil {
		return nil, false, fmt.Errorf("query application data: %w", err)
	}
	defer rows.Close()

	var data map[string]string
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, fmt.Errorf("scan application data: %w", err)
		}
		if data == nil {
			data = make(map[string]string)
		}
		data[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate application data: %w", err)
	}

	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// ReadRelationData returns every application bucket on a relation
// instance, keyed by application then field.
func (s *Store) ReadRelationData(ctx context.Context, relationID int) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app, field, value FROM application_data
		WHERE relation_id = ?
		ORDER BY app, field
	`, relationID)
	if err != nil {
		return nil, fmt.Errorf("query relation data: %w", err)
	}
	defer rows.Close()

	buckets := make(map[string]map[string]string)
	for rows.Next() {
		var app, field, value string
		if err := rows.Scan(&app, &field, &value); err != nil {
			return nil, fmt.Errorf("scan relation data: %w", err)
		}
		if buckets[app] == nil {
			buckets[app] = make(map[string]string)
		}
		buckets[app][field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relation data: %w", err)
	}
	return buckets, nil
}

// ReadFieldRevision returns how many times a field has been written.
// Returns 0 if the field does not exist.
func (s *Store) ReadFieldRevision(ctx context.Context, relationID int, app, field string) (int64, error) {
	var revision int64
	err := s.db.QueryRowContext(ctx, `
		SELECT revision FROM application_data
		WHERE relation_id = ? AND app = ? AND field = ?
	`, relationID, app, field).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read field revision: %w", err)
	}
	return revision, nil
}

// ReadEvents returns an application's event log ordered by seq, id.
// An empty app returns every application's events.
func (s *Store) ReadEvents(ctx context.Context, app string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app, relation_id, kind, data, seq
		FROM event_log
		WHERE (? = '' OR app = ?)
		ORDER BY seq ASC, id ASC
	`, app, app)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		var dataJSON string
		if err := rows.Scan(&rec.ID, &rec.App, &rec.RelationID, &rec.Kind, &dataJSON, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Data, err = unmarshalEventData(dataJSON)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// MaxEventSeq returns the highest seq in an application's event log, or 0 if
// it has none.
func (s *Store) MaxEventSeq(ctx context.Context, app string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM event_log
		WHERE app = ?
	`, app).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read max event seq: %w", err)
	}
	return seq, nil
}
