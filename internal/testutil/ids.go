package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns "prefix-1", "prefix-2", ... in order.
//
// Unlike engine.FixedGenerator, which panics once its list is consumed,
// SequenceGenerator never runs out. Scenario replay uses it so the same
// scenario always produces the same record IDs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix uses "id".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next ID in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
