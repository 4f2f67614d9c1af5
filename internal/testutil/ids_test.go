package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("sched-123")

	assert.Equal(t, "sched-123", gen.Generate())
	assert.Equal(t, "sched-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	gen := NewFixedIDGenerator("")
	assert.Equal(t, "test-scheduler", gen.Generate())
}

func TestSequentialIDGenerator_Increments(t *testing.T) {
	gen := NewSequentialIDGenerator("run")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Equal(t, "run-3", gen.Generate())
}

func TestSequentialIDGenerator_Reset(t *testing.T) {
	gen := NewSequentialIDGenerator("run")
	gen.Generate()
	gen.Generate()

	gen.Reset()

	assert.Equal(t, "run-1", gen.Generate())
}

func TestSequentialIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDGenerator("id")
	const goroutines = 20
	const calls = 50

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls)
}
