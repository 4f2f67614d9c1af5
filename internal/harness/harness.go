package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs one scenario on a fresh scheduler with a deterministic ID.
type Harness struct {
	scenario  *Scenario
	sched     *engine.Scheduler
	sources   map[string]engine.Source
	recorders map[string]*engine.Recorder
	logger    *slog.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes scheduler and harness logs to l.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create a scheduler from the scenario's frame settings
// 2. Create every source
// 3. Attach every observer with its subscription diagram
// 4. Flush the scheduler
// 5. Check expectations and collect recordings
//
// A source or observer that cannot be built is a returned error. Failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := &Harness{
		scenario:  scenario,
		sources:   make(map[string]engine.Source, len(scenario.Sources)),
		recorders: make(map[string]*engine.Recorder, len(scenario.Observe)),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs by default
	}
	for _, opt := range opts {
		opt(h)
	}

	h.sched = engine.New(
		engine.Config{
			FrameTimeFactor: scenario.FrameTimeFactor,
			MaxFrameValue:   scenario.MaxFrameValue,
		},
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.Name)),
	)
	defer h.sched.Dispose()

	if err := h.createSources(); err != nil {
		return nil, err
	}
	if err := h.attachObservers(); err != nil {
		return nil, err
	}

	h.sched.Flush()

	result := NewResult()
	result.SchedulerID = h.sched.ID()
	result.FinalFrame = h.sched.Now()
	if err := h.collect(result); err != nil {
		return nil, err
	}

	for i, e := range scenario.Expect {
		if err := h.checkExpectation(e); err != nil {
			result.AddError(fmt.Sprintf("expect[%d] %s: %v", i, describeTarget(e), err))
		}
	}

	h.logger.Info("scenario complete",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"failures", len(result.Errors),
		"final_frame", result.FinalFrame,
	)
	return result, nil
}

func (h *Harness) createSources() error {
	for _, spec := range h.scenario.Sources {
		values, err := convertValues(spec.Values)
		if err != nil {
			return fmt.Errorf("source %q: %w", spec.Name, err)
		}

		var src engine.Source
		switch spec.Kind {
		case SourceHot:
			src, err = h.sched.Hot(spec.Marble, values, spec.Error)
		case SourceCold:
			src, err = h.sched.Cold(spec.Marble, values, spec.Error)
		default:
			err = fmt.Errorf("unknown kind %q", spec.Kind)
		}
		if err != nil {
			return fmt.Errorf("source %q: %w", spec.Name, err)
		}
		h.sources[spec.Name] = src
	}
	return nil
}

func (h *Harness) attachObservers() error {
	for _, spec := range h.scenario.Observe {
		rec, err := h.sched.Record(h.sources[spec.Source], spec.Subscription)
		if err != nil {
			return fmt.Errorf("observe %q: %w", spec.Name, err)
		}
		h.recorders[spec.Name] = rec
	}
	return nil
}

// collect copies recordings and subscription logs into result with their
// fingerprints.
func (h *Harness) collect(result *Result) error {
	for _, spec := range h.scenario.Observe {
		msgs := h.sched.GetMessages(h.recorders[spec.Name])
		fp, err := ir.Fingerprint(msgs)
		if err != nil {
			return fmt.Errorf("observe %q: %w", spec.Name, err)
		}
		result.Recordings = append(result.Recordings, Recording{
			Name:        spec.Name,
			Source:      spec.Source,
			Messages:    msgs,
			Fingerprint: fp,
		})
	}

	for _, spec := range h.scenario.Sources {
		windows := h.sources[spec.Name].Subscriptions()
		fp, err := ir.SubscriptionFingerprint(windows)
		if err != nil {
			return fmt.Errorf("source %q: %w", spec.Name, err)
		}
		result.Subscriptions = append(result.Subscriptions, SubscriptionLog{
			Source:      spec.Name,
			Windows:     windows,
			Fingerprint: fp,
		})
	}
	return nil
}

func describeTarget(e Expectation) string {
	if e.Observe != "" {
		return fmt.Sprintf("observe %q", e.Observe)
	}
	return fmt.Sprintf("source %q", e.Source)
}
