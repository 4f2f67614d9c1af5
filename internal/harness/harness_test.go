package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRun_ScenarioFiles(t *testing.T) {
	files := []string{
		"cold_replay.yaml",
		"hot_shared.yaml",
		"nested.yaml",
		"error_terminal.yaml",
		"scaled.cue",
	}

	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, file))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_ColdReplay(t *testing.T) {
	result, err := Run(loadTestScenario(t, "cold_replay.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "cold_replay", result.SchedulerID)
	assert.Equal(t, ir.Frame(8), result.FinalFrame)

	first := result.Recording("first")
	require.NotNil(t, first)
	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V(1)),
		ir.NextAt(3, ir.V(2)),
		ir.CompleteAt(5),
	}, first.Messages)
	assert.Equal(t, ir.MustFingerprint(first.Messages), first.Fingerprint)

	late := result.Recording("late")
	require.NotNil(t, late)
	assert.Equal(t, ir.Frame(4), late.Messages[0].Frame)
	assert.NotEqual(t, first.Fingerprint, late.Fingerprint)

	log := result.SubscriptionLog("src")
	require.NotNil(t, log)
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(0, 5), ir.Subscribe(3, 8)}, log.Windows)

	assert.Nil(t, result.Recording("missing"))
	assert.Nil(t, result.SubscriptionLog("missing"))
}

func TestRun_HotSharedTimeline(t *testing.T) {
	result, err := Run(loadTestScenario(t, "hot_shared.yaml"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, []ir.TimedMessage{ir.NextAt(1, ir.V("a")), ir.NextAt(3, ir.V("b"))},
		result.Recording("partial").Messages)
	assert.Equal(t, []ir.SubscriptionWindow{
		ir.Subscribe(0, 7),
		ir.Subscribe(0, 4),
		ir.Subscribe(2, 7),
	}, result.SubscriptionLog("ticks").Windows)
}

func TestRun_NestedMaterialized(t *testing.T) {
	result, err := Run(loadTestScenario(t, "nested.yaml"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	msgs := result.Recording("flat").Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, ir.Seq(ir.NextAt(1, ir.V(1)), ir.CompleteAt(2)), msgs[0].Notification.Value)
	assert.Equal(t, ir.Seq(ir.ErrorAt(0, "inner failure")), msgs[1].Notification.Value)
}

func TestRun_FailingExpectation(t *testing.T) {
	s := &Scenario{
		Name:        "failing",
		Description: "expected timeline is one frame late",
		Sources:     []SourceSpec{{Name: "src", Kind: SourceCold, Marble: "-a|"}},
		Observe:     []ObserveSpec{{Name: "obs", Source: "src"}},
		Expect: []Expectation{
			{Observe: "obs", Marble: "--a|"},
			{Source: "src", Subscriptions: []string{"^-!"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expect[0] observe "obs"`)
	assert.Contains(t, result.Errors[0], "Assertion failed: CONTENT_MISMATCH of messages at index 0")
}

func TestRun_SubscriptionMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "subs",
		Description: "wrong subscription log",
		Sources:     []SourceSpec{{Name: "src", Kind: SourceHot, Marble: "---|"}},
		Observe:     []ObserveSpec{{Name: "obs", Source: "src", Subscription: "-^"}},
		Expect: []Expectation{
			{Source: "src", Subscriptions: []string{"^--!", "^"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expect[0] source "src"`)
	assert.Contains(t, result.Errors[0], "LENGTH_MISMATCH of subscriptions")
}

func TestRun_InvalidExpectedMarble(t *testing.T) {
	s := &Scenario{
		Name:        "bad_expect",
		Description: "expected diagram does not parse",
		Sources:     []SourceSpec{{Name: "src", Kind: SourceCold, Marble: "a|"}},
		Observe:     []ObserveSpec{{Name: "obs", Source: "src"}},
		Expect: []Expectation{
			{Observe: "obs", Marble: "(a"},
			{Source: "src", Subscriptions: []string{"^^"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected marble")
	assert.Contains(t, result.Errors[0], string(marble.ErrCodeUnbalancedGroup))
	assert.Contains(t, result.Errors[1], "expected subscriptions[0]")
	assert.Contains(t, result.Errors[1], string(marble.ErrCodeDuplicateSubscription))
}

func TestRun_SourceParseError(t *testing.T) {
	s := &Scenario{
		Name:        "bad_source",
		Description: "cold sources reject a subscription point",
		Sources:     []SourceSpec{{Name: "src", Kind: SourceCold, Marble: "-^a|"}},
		Expect:      []Expectation{{Source: "src", Subscriptions: []string{}}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `source "src"`)
	assert.True(t, marble.IsParseError(err))
}

func TestRun_ObserverParseError(t *testing.T) {
	s := &Scenario{
		Name:        "bad_observer",
		Description: "subscription diagram does not parse",
		Sources:     []SourceSpec{{Name: "src", Kind: SourceHot, Marble: "-a|"}},
		Observe:     []ObserveSpec{{Name: "obs", Source: "src", Subscription: "!^"}},
		Expect:      []Expectation{{Source: "src", Subscriptions: []string{}}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `observe "obs"`)
	assert.True(t, marble.IsParseError(err))
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "hot_shared.yaml")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(loadTestScenario(t, "error_terminal.yaml"), WithLogger(logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "scenario complete")
	assert.Contains(t, out, "scheduler=error_terminal")
	assert.Contains(t, out, "scheduler created")
}
