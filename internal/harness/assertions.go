package harness

import (
	"fmt"

	"github.com/roach88/marbles/internal/assertion"
	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

// checkExpectation evaluates one expectation against the flushed scheduler.
// Returns an *assertion.AssertionError on mismatch, or a plain error when the
// expected diagram itself is invalid.
func (h *Harness) checkExpectation(e Expectation) error {
	if e.Observe != "" {
		return h.expectMessages(e)
	}
	return h.expectSubscriptions(e)
}

// expectMessages compares an observer's recording with the expected diagram.
// Nested diagrams in the expected values are expanded so they compare
// against materialized inner recordings.
func (h *Harness) expectMessages(e Expectation) error {
	values, err := convertValues(e.Values)
	if err != nil {
		return err
	}

	cfg := h.sched.MarbleConfig(values, e.Error)
	cfg.ExpandNested = true
	expected, err := marble.Parse(e.Marble, cfg)
	if err != nil {
		return fmt.Errorf("expected marble: %w", err)
	}

	actual := h.sched.GetMessages(h.recorders[e.Observe])
	return assertion.Equal(actual, expected, h.compareOptions()...)
}

// expectSubscriptions compares a source's subscription log with the
// expected subscription diagrams.
func (h *Harness) expectSubscriptions(e Expectation) error {
	cfg := h.sched.Config()
	expected := make([]ir.SubscriptionWindow, len(e.Subscriptions))
	for i, diagram := range e.Subscriptions {
		w, err := marble.ParseSubscription(diagram, cfg.FrameTimeFactor, h.sched.MaxFrame())
		if err != nil {
			return fmt.Errorf("expected subscriptions[%d]: %w", i, err)
		}
		expected[i] = w
	}

	actual := h.sources[e.Source].Subscriptions()
	return assertion.EqualSubscriptions(actual, expected, h.compareOptions()...)
}

func (h *Harness) compareOptions() []assertion.Option {
	return []assertion.Option{
		assertion.WithFrameTimeFactor(h.sched.Config().FrameTimeFactor),
	}
}
