package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecord is one captured log line with its attributes flattened to
// strings. Grouped attributes use dotted keys.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

type recorderState struct {
	mu      sync.Mutex
	records []LogRecord
}

// RecordingHandler is a slog.Handler that keeps every record it handles.
// Handlers derived through WithAttrs and WithGroup share the same record
// list. An optional next handler receives each record as well.
type RecordingHandler struct {
	state  *recorderState
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	next   slog.Handler
}

// NewRecordingHandler records records at or above level and forwards them to
// next when it is non-nil.
func NewRecordingHandler(level slog.Leveler, next slog.Handler) *RecordingHandler {
	if level == nil {
		level = slog.LevelDebug
	}
	return &RecordingHandler{state: &recorderState{}, level: level, next: next}
}

// Enabled implements slog.Handler.
func (h *RecordingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RecordingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		rec := LogRecord{Level: r.Level, Message: r.Message, Attrs: make(map[string]string)}
		prefix := groupPrefix(h.groups)
		for _, a := range h.attrs {
			flatten(rec.Attrs, "", a)
		}
		r.Attrs(func(a slog.Attr) bool {
			flatten(rec.Attrs, prefix, a)
			return true
		})

		h.state.mu.Lock()
		h.state.records = append(h.state.records, rec)
		h.state.mu.Unlock()
	}

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *RecordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := groupPrefix(h.groups)
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Attr{Key: prefix + a.Key, Value: a.Value}
		}
		clone.attrs = append(clone.attrs, a)
	}
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *RecordingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}

// Records returns a copy of everything recorded so far.
func (h *RecordingHandler) Records() []LogRecord {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return append([]LogRecord(nil), h.state.records...)
}

// Count returns the number of records at exactly level.
func (h *RecordingHandler) Count(level slog.Level) int {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	n := 0
	for _, r := range h.state.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

// Reset discards recorded records.
func (h *RecordingHandler) Reset() {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.records = nil
}

func groupPrefix(groups []string) string {
	prefix := ""
	for _, g := range groups {
		prefix += g + "."
	}
	return prefix
}

func flatten(out map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(out, p, ga)
		}
		return
	}
	out[prefix+a.Key] = v.String()
}
