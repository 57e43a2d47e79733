package relation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/event"
	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/store"
)

const (
	providerApp = "provider-app"
	consumerApp = "consumer-app"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testLogger captures text output at debug level.
func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func countErrorLines(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "level=ERROR")
}

type leader struct{ is bool }

func (l *leader) IsLeader() bool { return l.is }

func addRelation(t *testing.T, s *store.Store, remoteApp string) ir.RelationDescriptor {
	t.Helper()
	rel, err := s.CreateRelation(context.Background(), "service", "svc", remoteApp)
	require.NoError(t, err)
	return rel
}

func writePeerData(t *testing.T, s *store.Store, rel ir.RelationDescriptor, value string) {
	t.Helper()
	require.NoError(t, s.WriteApplicationData(context.Background(), rel.ID, rel.RemoteApp, ir.ProviderDataField, value))
}

func changed(rel ir.RelationDescriptor) engine.Trigger {
	return engine.Trigger{Kind: engine.TriggerRelationChanged, Relation: rel, App: rel.RemoteApp}
}

func recordEvents(c *Consumer) *event.Log {
	var log event.Log
	c.On().SubscribeAll(log.Record)
	return &log
}

// failingBackend fails every call.
type failingBackend struct{ err error }

func (f failingBackend) ReadApplicationData(context.Context, int, string) (map[string]string, bool, error) {
	return nil, false, f.err
}

func (f failingBackend) WriteApplicationData(context.Context, int, string, string, string) error {
	return f.err
}

func (f failingBackend) ListRelations(context.Context, string) ([]ir.RelationDescriptor, error) {
	return nil, f.err
}

func (f failingBackend) ReadRelation(context.Context, int) (store.Relation, error) {
	return store.Relation{}, f.err
}

var errBackend = errors.New("disk on fire")
