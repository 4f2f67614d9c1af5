// Package testutil provides deterministic collaborators for tests.
package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns the same ID every time.
//
// Golden recordings and run-history rows embed the scheduler ID, so a fixed
// ID keeps repeated runs byte-identical.
//
// FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-scheduler".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-scheduler"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequentialIDGenerator returns "<prefix>-1", "<prefix>-2", ...
//
// Unlike FixedIDGenerator every call yields a distinct ID, and Reset lets a
// test replay the same sequence.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator starting at 1.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
