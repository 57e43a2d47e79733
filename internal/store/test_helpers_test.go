package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/balbirthomas/operator/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRelation registers a "service" relation towards remoteApp.
func createTestRelation(t *testing.T, s *Store, remoteApp string) ir.RelationDescriptor {
	t.Helper()
	rel, err := s.CreateRelation(context.Background(), "service", "svc", remoteApp)
	if err != nil {
		t.Fatalf("CreateRelation() failed: %v", err)
	}
	return rel
}
