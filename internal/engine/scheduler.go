package engine

import (
	"log/slog"
	"math"
	"strings"

	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

// Defaults for Config fields left zero.
const (
	DefaultFrameTimeFactor = marble.DefaultFrameTimeFactor
	DefaultMaxFrameValue   = marble.DefaultMaxFrameValue
)

// Config holds scheduler settings.
type Config struct {
	// AutoFlush makes reading a recorder flush pending actions first.
	AutoFlush bool

	// FrameTimeFactor is the number of frames one diagram character spans.
	FrameTimeFactor int64

	// MaxFrameValue bounds execution, in diagram characters. The effective
	// limit is FrameTimeFactor × MaxFrameValue.
	MaxFrameValue int64
}

// DefaultConfig returns a manual-flush configuration with one frame per
// character and a limit of 1000 characters.
func DefaultConfig() Config {
	return Config{
		FrameTimeFactor: DefaultFrameTimeFactor,
		MaxFrameValue:   DefaultMaxFrameValue,
	}
}

// withDefaults replaces non-positive fields with defaults.
func (c Config) withDefaults() Config {
	if c.FrameTimeFactor <= 0 {
		c.FrameTimeFactor = DefaultFrameTimeFactor
	}
	if c.MaxFrameValue <= 0 {
		c.MaxFrameValue = DefaultMaxFrameValue
	}
	return c
}

// MaxFrame returns the last frame the scheduler will execute. A product
// that does not fit in a frame saturates just below ir.Never.
func (c Config) MaxFrame() ir.Frame {
	c = c.withDefaults()
	if c.FrameTimeFactor > (math.MaxInt64-1)/c.MaxFrameValue {
		return ir.Never - 1
	}
	return ir.Frame(c.FrameTimeFactor * c.MaxFrameValue)
}

// State describes what the scheduler is doing.
type State int

const (
	// StateIdle means no flush or advance is in progress.
	StateIdle State = iota
	// StateRunning means actions are being executed.
	StateRunning
	// StateDisposed is terminal.
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Scheduler owns a virtual clock and a frame-ordered action queue.
//
// Sources created through a scheduler register their emissions as actions;
// Flush and AdvanceTo execute them in frame order, same-frame actions in the
// order they were queued. A scheduler belongs to a single test and is not
// safe for concurrent use.
type Scheduler struct {
	id     string
	cfg    Config
	clock  *Clock
	queue  *actionQueue
	logger *slog.Logger
	ids    IDGenerator
	state  State
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithIDGenerator sets the generator for the scheduler ID.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) {
		s.ids = g
	}
}

// New creates a scheduler at frame 0.
// Non-positive FrameTimeFactor or MaxFrameValue fall back to the defaults.
func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg.withDefaults(),
		clock:  NewClock(),
		queue:  newActionQueue(),
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.id = s.ids.Generate()
	s.logger = s.logger.With("scheduler", s.id)
	s.logger.Debug("scheduler created",
		"auto_flush", s.cfg.AutoFlush,
		"frame_time_factor", s.cfg.FrameTimeFactor,
		"max_frame", s.cfg.MaxFrame(),
	)
	return s
}

// ID returns the scheduler's identifier.
func (s *Scheduler) ID() string { return s.id }

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Now returns the current frame.
func (s *Scheduler) Now() ir.Frame { return s.clock.Now() }

// MaxFrame returns the last frame Flush executes.
func (s *Scheduler) MaxFrame() ir.Frame { return s.cfg.MaxFrame() }

// State returns the scheduler's lifecycle state.
func (s *Scheduler) State() State { return s.state }

// Pending returns the number of queued actions that can still run.
func (s *Scheduler) Pending() int { return s.queue.pending() }

// MarbleConfig returns a parser configuration that uses this scheduler's
// frame-time factor and max frame.
func (s *Scheduler) MarbleConfig(values ir.Values, errValue any) marble.Config {
	return marble.Config{
		Values:          values,
		ErrorValue:      errValue,
		FrameTimeFactor: s.cfg.FrameTimeFactor,
		MaxFrame:        s.cfg.MaxFrame(),
	}
}

// Hot parses diagram and creates a hot source. A '^' in the diagram marks
// frame 0; emissions before it are dropped.
func (s *Scheduler) Hot(diagram string, values ir.Values, errValue any) (*HotSource, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("Hot", s.Now())
	}
	msgs, err := marble.Parse(diagram, s.MarbleConfig(values, errValue))
	if err != nil {
		return nil, err
	}
	return s.HotFromMessages(msgs)
}

// Cold parses diagram and creates a cold source. Cold diagrams may not
// contain a subscription point.
func (s *Scheduler) Cold(diagram string, values ir.Values, errValue any) (*ColdSource, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("Cold", s.Now())
	}
	cfg := s.MarbleConfig(values, errValue)
	cfg.ForbidSubscriptionPoint = true
	msgs, err := marble.Parse(diagram, cfg)
	if err != nil {
		return nil, err
	}
	return s.ColdFromMessages(msgs)
}

// HotFromMessages creates a hot source from pre-built messages. Messages are
// queued immediately at their absolute frames.
func (s *Scheduler) HotFromMessages(msgs []ir.TimedMessage) (*HotSource, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("HotFromMessages", s.Now())
	}
	return newHotSource(s, msgs), nil
}

// ColdFromMessages creates a cold source from pre-built messages. Messages are
// queued per subscription, relative to the subscribing frame.
func (s *Scheduler) ColdFromMessages(msgs []ir.TimedMessage) (*ColdSource, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("ColdFromMessages", s.Now())
	}
	return newColdSource(s, msgs), nil
}

// Schedule queues fn to run delay frames from now. Negative delays run at
// the current frame.
func (s *Scheduler) Schedule(delay ir.Frame, fn func()) (*Action, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("Schedule", s.Now())
	}
	if delay < 0 {
		delay = 0
	}
	return s.enqueue(s.Now()+delay, fn), nil
}

// ScheduleAt queues fn for an absolute frame. Frames in the past run at the
// current frame.
func (s *Scheduler) ScheduleAt(frame ir.Frame, fn func()) (*Action, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("ScheduleAt", s.Now())
	}
	return s.enqueue(frame, fn), nil
}

// enqueue queues fn at frame, clamped to now. On a disposed scheduler the
// returned action is already voided.
func (s *Scheduler) enqueue(frame ir.Frame, fn func()) *Action {
	return s.enqueueWithPriority(frame, priorityNormal, fn)
}

// enqueueControl queues a recorder subscribe or unsubscribe.
func (s *Scheduler) enqueueControl(frame ir.Frame, fn func()) *Action {
	return s.enqueueWithPriority(frame, priorityControl, fn)
}

func (s *Scheduler) enqueueWithPriority(frame ir.Frame, priority int, fn func()) *Action {
	if frame < s.Now() {
		frame = s.Now()
	}
	a := &Action{frame: frame, priority: priority, seq: s.clock.NextSeq(), fn: fn}
	if s.state == StateDisposed {
		a.Cancel()
		return a
	}
	s.queue.push(a)
	return a
}

// Flush executes pending actions in order until the queue is empty or the
// next action lies past the max frame. Calling Flush from inside an action,
// or with nothing pending, is a no-op.
func (s *Scheduler) Flush() {
	if s.state != StateIdle {
		return
	}
	executed := s.run(s.MaxFrame())
	s.logger.Debug("flush complete",
		"executed", executed,
		"frame", s.Now(),
		"pending", s.queue.pending(),
	)
}

// AdvanceTo executes pending actions up to and including target, then leaves
// the clock at exactly target. Advancing to the current frame again is a
// no-op; a target behind the clock is an error. Calling AdvanceTo from inside
// an action is a no-op.
func (s *Scheduler) AdvanceTo(target ir.Frame) error {
	switch s.state {
	case StateDisposed:
		return NewDisposedError("AdvanceTo", s.Now())
	case StateRunning:
		return nil
	}
	if target < s.Now() {
		return NewBackwardAdvanceError(s.Now(), target)
	}

	limit := min(target, s.MaxFrame())
	executed := s.run(limit)
	s.clock.advance(target)

	s.logger.Debug("advance complete",
		"executed", executed,
		"frame", s.Now(),
		"pending", s.queue.pending(),
	)
	return nil
}

// run pops and executes actions with frame <= limit.
func (s *Scheduler) run(limit ir.Frame) int {
	s.state = StateRunning
	defer func() {
		if s.state == StateRunning {
			s.state = StateIdle
		}
	}()

	executed := 0
	for s.state == StateRunning {
		a := s.queue.peek()
		if a == nil || a.frame > limit {
			break
		}
		s.queue.pop()
		s.clock.advance(a.frame)
		a.execute()
		executed++
	}
	return executed
}

// Record subscribes a new Recorder to obs.
//
// subscription is an optional subscription diagram. Its '^' delays the
// subscription to that frame and its '!' schedules the unsubscription.
// An empty diagram subscribes now and never unsubscribes. Subscribing and
// unsubscribing run before any emission queued for the same frame.
func (s *Scheduler) Record(obs Observable, subscription string) (*Recorder, error) {
	if s.state == StateDisposed {
		return nil, NewDisposedError("Record", s.Now())
	}

	window := ir.Subscribe(ir.Never, ir.Never)
	if subscription != "" {
		w, err := marble.ParseSubscription(subscription, s.cfg.FrameTimeFactor, s.MaxFrame())
		if err != nil {
			return nil, err
		}
		window = w
	}

	r := newRecorder(s)
	if window.Subscribed == ir.Never && strings.ContainsRune(subscription, marble.TokenSubscribe) {
		// '^' lies past the max frame: the recorder never subscribes.
		r.done = true
		s.logger.Debug("recorder subscription past max frame", "subscription", subscription)
		return r, nil
	}
	if window.Subscribed != ir.Never && window.Subscribed > s.Now() {
		r.pending = s.enqueueControl(window.Subscribed, func() { r.subscribe(obs) })
	} else {
		r.subscribe(obs)
	}
	if window.Unsubscribed != ir.Never {
		s.enqueueControl(window.Unsubscribed, r.Unsubscribe)
	}

	s.logger.Debug("recorder attached",
		"subscribed", window.Subscribed,
		"unsubscribed", window.Unsubscribed,
	)
	return r, nil
}

// GetMessages returns what r has recorded so far. Under AutoFlush, pending
// actions are flushed first.
func (s *Scheduler) GetMessages(r *Recorder) []ir.TimedMessage {
	if s.cfg.AutoFlush && s.state == StateIdle && s.queue.pending() > 0 {
		s.Flush()
	}
	return r.snapshot()
}

// Dispose voids every pending action. Afterwards the scheduler rejects new
// sources, recorders and actions; Flush becomes a no-op.
func (s *Scheduler) Dispose() {
	if s.state == StateDisposed {
		return
	}
	voided := s.queue.voidAll()
	s.state = StateDisposed
	s.logger.Debug("scheduler disposed", "voided", voided, "frame", s.Now())
}
