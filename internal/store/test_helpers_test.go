package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
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

// createTestRun creates a passing run with one recording and one log.
func createTestRun(t *testing.T, id, scenario string) *Run {
	t.Helper()

	rec, err := NewRecording("obs", "src", []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.CompleteAt(2),
	})
	require.NoError(t, err)

	log, err := NewSubscriptionLog("src", []ir.SubscriptionWindow{ir.Subscribe(0, 2)})
	require.NoError(t, err)

	return &Run{
		ID:              id,
		Scenario:        scenario,
		SchedulerID:     scenario,
		Pass:            true,
		FinalFrame:      2,
		HarnessVersion:  ir.HarnessVersion,
		SnapshotVersion: ir.SnapshotVersion,
		Recordings:      []Recording{rec},
		Subscriptions:   []SubscriptionLog{log},
	}
}

// verifyPragma checks that a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
