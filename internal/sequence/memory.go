package sequence

import (
	"context"
	"sync"
	"time"
)

type seriesKey struct {
	orgID int64
	kind  Kind
	year  int
}

// MemoryGenerator is a mutex-guarded in-process generator. It backs tests
// and single-node deployments that run without Postgres.
type MemoryGenerator struct {
	mu       sync.Mutex
	counters map[seriesKey]int64
	now      func() time.Time
}

// NewMemoryGenerator constructs a MemoryGenerator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[seriesKey]int64), now: time.Now}
}

// WithNow overrides the clock, for tests.
func (g *MemoryGenerator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Next returns the next document number for org and kind.
func (g *MemoryGenerator) Next(ctx context.Context, orgID int64, kind Kind) (string, error) {
	year := g.now().Year()
	key := seriesKey{orgID: orgID, kind: kind, year: year}
	g.mu.Lock()
	g.counters[key]++
	counter := g.counters[key]
	g.mu.Unlock()
	return Format(kind, year, counter), nil
}
