// Package sandbox is the public entry point of marbles.
//
// A Sandbox owns one virtual-time scheduler. Sources are built from marble
// diagrams, recorders capture what the code under test emits, and E and S
// build the expected side of an assertion with the sandbox's frame settings:
//
//	sb := sandbox.Create(false, 1, 1000)
//	defer sb.Dispose()
//
//	src, _ := sb.Cold("-a-b-|", nil, nil)
//	rec, _ := sb.Record(double(src), "")
//	sb.Flush()
//
//	err := sandbox.Assert(sb.GetMessages(rec), sb.MustE("-x-y-|", sandbox.Values{'x': sandbox.V(2), 'y': sandbox.V(4)}, nil))
package sandbox

import (
	"io"
	"log/slog"

	"github.com/roach88/marbles/internal/assertion"
	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

// Data model.
type (
	Frame              = ir.Frame
	Value              = ir.Value
	Scalar             = ir.Scalar
	Nested             = ir.Nested
	Values             = ir.Values
	Notification       = ir.Notification
	TimedMessage       = ir.TimedMessage
	SubscriptionWindow = ir.SubscriptionWindow
)

// Never is the frame of an unsubscription that never happened.
const Never = ir.Never

// Stream contract and scheduler-built sources.
type (
	Observer     = engine.Observer
	Observable   = engine.Observable
	Subscription = engine.Subscription
	HotSource    = engine.HotSource
	ColdSource   = engine.ColdSource
	Recorder     = engine.Recorder
)

// Assertion errors and options.
type (
	AssertionError  = assertion.AssertionError
	AssertionOption = assertion.Option
)

// Sandbox is a virtual-time test scheduler together with the parser
// settings its diagrams are read with. A Sandbox belongs to one test.
type Sandbox struct {
	sched *engine.Scheduler
}

// Option configures a Sandbox.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

// WithLogger routes scheduler debug logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// Create builds a sandbox. With autoFlush, GetMessages flushes pending
// actions first. frameTimeFactor is the number of frames per diagram
// character and maxFrameValue the diagram length past which notifications
// are dropped; non-positive values select 1 and 1000.
func Create(autoFlush bool, frameTimeFactor, maxFrameValue int64, opts ...Option) *Sandbox {
	st := settings{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&st)
	}

	sched := engine.New(engine.Config{
		AutoFlush:       autoFlush,
		FrameTimeFactor: frameTimeFactor,
		MaxFrameValue:   maxFrameValue,
	}, engine.WithLogger(st.logger))
	return &Sandbox{sched: sched}
}

// Scheduler exposes the underlying scheduler for code under test that needs
// to schedule its own work in virtual time.
func (s *Sandbox) Scheduler() *engine.Scheduler { return s.sched }

// Now returns the current virtual frame.
func (s *Sandbox) Now() Frame { return s.sched.Now() }

// Hot creates a hot source. A '^' in the diagram marks frame 0.
func (s *Sandbox) Hot(diagram string, values Values, errValue any) (*HotSource, error) {
	return s.sched.Hot(diagram, values, errValue)
}

// Cold creates a cold source that replays its diagram for every subscriber.
func (s *Sandbox) Cold(diagram string, values Values, errValue any) (*ColdSource, error) {
	return s.sched.Cold(diagram, values, errValue)
}

// HotMessages creates a hot source from pre-built messages.
func (s *Sandbox) HotMessages(msgs ...TimedMessage) (*HotSource, error) {
	return s.sched.HotFromMessages(msgs)
}

// ColdMessages creates a cold source from pre-built messages.
func (s *Sandbox) ColdMessages(msgs ...TimedMessage) (*ColdSource, error) {
	return s.sched.ColdFromMessages(msgs)
}

// Record subscribes a recorder to obs. subscription is an optional
// subscription diagram ("^" to subscribe, "!" to unsubscribe); "" subscribes
// now and stays subscribed.
func (s *Sandbox) Record(obs Observable, subscription string) (*Recorder, error) {
	return s.sched.Record(obs, subscription)
}

// Flush runs every pending action up to the max frame.
func (s *Sandbox) Flush() { s.sched.Flush() }

// AdvanceTo runs pending actions up to and including frame.
func (s *Sandbox) AdvanceTo(frame Frame) error { return s.sched.AdvanceTo(frame) }

// GetMessages returns what r has recorded so far.
func (s *Sandbox) GetMessages(r *Recorder) []TimedMessage { return s.sched.GetMessages(r) }

// Dispose voids pending actions. The sandbox cannot be used afterwards.
func (s *Sandbox) Dispose() { s.sched.Dispose() }

// E parses an expected message diagram with the sandbox's frame settings.
// Diagram values are expanded into nested sequences.
func (s *Sandbox) E(diagram string, values Values, errValue any) ([]TimedMessage, error) {
	cfg := s.sched.MarbleConfig(values, errValue)
	cfg.ExpandNested = true
	return marble.Parse(diagram, cfg)
}

// MustE is like E but panics on an invalid diagram.
func (s *Sandbox) MustE(diagram string, values Values, errValue any) []TimedMessage {
	msgs, err := s.E(diagram, values, errValue)
	if err != nil {
		panic(err)
	}
	return msgs
}

// S parses an expected subscription diagram with the sandbox's frame
// settings.
func (s *Sandbox) S(diagram string) (SubscriptionWindow, error) {
	return marble.ParseSubscription(diagram, s.sched.Config().FrameTimeFactor, s.sched.MaxFrame())
}

// MustS is like S but panics on an invalid diagram.
func (s *Sandbox) MustS(diagram string) SubscriptionWindow {
	w, err := s.S(diagram)
	if err != nil {
		panic(err)
	}
	return w
}

// Assert compares two message sequences and returns an *AssertionError
// describing the first divergence, or nil.
func Assert(actual, expected []TimedMessage, opts ...AssertionOption) error {
	return assertion.Equal(actual, expected, opts...)
}

// AssertSubscriptions compares two subscription logs.
func AssertSubscriptions(actual, expected []SubscriptionWindow, opts ...AssertionOption) error {
	return assertion.EqualSubscriptions(actual, expected, opts...)
}

// WithErrorComparator replaces how error payloads are compared.
func WithErrorComparator(cmp assertion.ErrorComparator) AssertionOption {
	return assertion.WithErrorComparator(cmp)
}

// WithFrameTimeFactor renders diagnostics with the given frame-time factor.
func WithFrameTimeFactor(factor int64) AssertionOption {
	return assertion.WithFrameTimeFactor(factor)
}

// V wraps v as a value payload.
func V(v any) Value { return ir.V(v) }

// Inner describes a nested stream by diagram.
func Inner(diagram string, values Values) Value { return ir.Inner(diagram, values) }

// Next creates a value message at frame.
func Next(frame Frame, v any) TimedMessage {
	if val, ok := v.(Value); ok {
		return ir.NextAt(frame, val)
	}
	return ir.NextAt(frame, ir.V(v))
}

// Error creates an error message at frame.
func Error(frame Frame, err any) TimedMessage { return ir.ErrorAt(frame, err) }

// Complete creates a completion message at frame.
func Complete(frame Frame) TimedMessage { return ir.CompleteAt(frame) }

// Subscribe creates a subscription window. Pass Never for a subscription
// that is still open.
func Subscribe(subscribed, unsubscribed Frame) SubscriptionWindow {
	return ir.Subscribe(subscribed, unsubscribed)
}
