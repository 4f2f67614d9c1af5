package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/marbles/internal/ir"
)

// Snapshot captures everything a scenario run recorded.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName  string            `json:"scenario_name"`
	SchedulerID   string            `json:"scheduler_id"`
	FinalFrame    ir.Frame          `json:"final_frame"`
	Recordings    []Recording       `json:"recordings"`
	Subscriptions []SubscriptionLog `json:"subscriptions"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(scenarioName string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName:  scenarioName,
		SchedulerID:   result.SchedulerID,
		FinalFrame:    result.FinalFrame,
		Recordings:    result.Recordings,
		Subscriptions: result.Subscriptions,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	recordings := make([]any, len(s.Recordings))
	for i, r := range s.Recordings {
		recordings[i] = map[string]any{
			"name":        r.Name,
			"source":      r.Source,
			"fingerprint": r.Fingerprint,
			"messages":    r.Messages,
		}
	}

	subscriptions := make([]any, len(s.Subscriptions))
	for i, l := range s.Subscriptions {
		subscriptions[i] = map[string]any{
			"source":      l.Source,
			"fingerprint": l.Fingerprint,
			"windows":     l.Windows,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"scheduler_id":  s.SchedulerID,
		"final_frame":   s.FinalFrame,
		"recordings":    recordings,
		"subscriptions": subscriptions,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON. This is the
// golden file format.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-computed result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
