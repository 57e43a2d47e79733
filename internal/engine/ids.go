package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TriggerIDGenerator produces trigger IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TriggerIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 trigger IDs.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs in order, for golden traces.
// After the list is exhausted it falls back to "<prefix>-<n>" so long
// scenarios never panic mid-run.
type FixedGenerator struct {
	mu     sync.Mutex
	ids    []string
	idx    int
	prefix string
}

// NewFixedGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedGenerator("t-1", "t-2")
//	gen.Generate() // "t-1"
//	gen.Generate() // "t-2"
//	gen.Generate() // "trigger-3"
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids, prefix: "trigger"}
}

// NewSequentialGenerator returns "<prefix>-1", "<prefix>-2", ...
func NewSequentialGenerator(prefix string) *FixedGenerator {
	return &FixedGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.idx)
}
