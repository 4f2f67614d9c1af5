package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/testutil"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(testutil.NewFixedIDGenerator("sched-test")),
	)
	t.Cleanup(s.Dispose)
	return s
}

func record(t *testing.T, s *Scheduler, obs Observable, subscription string) *Recorder {
	t.Helper()
	r, err := s.Record(obs, subscription)
	require.NoError(t, err)
	return r
}

func TestNew_Defaults(t *testing.T) {
	s := newTestScheduler(t, Config{})

	assert.Equal(t, "sched-test", s.ID())
	assert.Equal(t, ir.Frame(0), s.Now())
	assert.Equal(t, ir.Frame(1000), s.MaxFrame())
	assert.Equal(t, DefaultConfig(), s.Config())
	assert.Equal(t, StateIdle, s.State())
}

func TestNew_FrameTimeFactorScalesMaxFrame(t *testing.T) {
	s := newTestScheduler(t, Config{FrameTimeFactor: 10, MaxFrameValue: 50})
	assert.Equal(t, ir.Frame(500), s.MaxFrame())
}

func TestNew_UUIDv7ByDefault(t *testing.T) {
	s := New(Config{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer s.Dispose()

	assert.Len(t, s.ID(), 36)
}

func TestScheduler_ColdDiagram(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b-|", ir.Scalars(map[rune]int{'a': 1, 'b': 2}), nil)
	require.NoError(t, err)

	r := record(t, s, src, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V(1)),
		ir.NextAt(3, ir.V(2)),
		ir.CompleteAt(5),
	}, s.GetMessages(r))
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(0, 5)}, src.Subscriptions())
}

func TestScheduler_ColdReplaysPerSubscription(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b-|", nil, nil)
	require.NoError(t, err)

	first := record(t, s, src, "")
	second := record(t, s, src, "---^")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.NextAt(3, ir.V("b")),
		ir.CompleteAt(5),
	}, first.Messages())
	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(4, ir.V("a")),
		ir.NextAt(6, ir.V("b")),
		ir.CompleteAt(8),
	}, second.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{
		ir.Subscribe(0, 5),
		ir.Subscribe(3, 8),
	}, src.Subscriptions())
}

func TestScheduler_HotSharesTimeline(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Hot("-a-b-|", nil, nil)
	require.NoError(t, err)

	first := record(t, s, src, "")
	second := record(t, s, src, "--^")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.NextAt(3, ir.V("b")),
		ir.CompleteAt(5),
	}, first.Messages())
	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(3, ir.V("b")),
		ir.CompleteAt(5),
	}, second.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{
		ir.Subscribe(0, 5),
		ir.Subscribe(2, 5),
	}, src.Subscriptions())
}

func TestScheduler_HotSubscriptionPoint(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Hot("a-^-b-|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(2, ir.V("b")),
		ir.CompleteAt(4),
	}, r.Messages())
}

func TestScheduler_SubscriptionFrameSeesSameFrameEmission(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Hot("-a-b-|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "---^")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(3, ir.V("b")),
		ir.CompleteAt(5),
	}, r.Messages())
}

func TestScheduler_UnsubscribeBeforeTerminalHidesIt(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b-|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "^----!")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.NextAt(3, ir.V("b")),
	}, r.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(0, 5)}, src.Subscriptions())
}

func TestScheduler_UnsubscribeVoidsPendingActions(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b-|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "^--!")
	assert.Equal(t, 4, s.Pending(), "three emissions plus the unsubscription")

	require.NoError(t, s.AdvanceTo(3))
	assert.Equal(t, 0, s.Pending(), "emissions after the unsubscription are voided")

	s.Flush()
	assert.Equal(t, []ir.TimedMessage{ir.NextAt(1, ir.V("a"))}, r.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(0, 3)}, src.Subscriptions())
}

func TestScheduler_HotUnsubscribeKeepsTimelineForOthers(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Hot("-a-b-|", nil, nil)
	require.NoError(t, err)

	early := record(t, s, src, "^-!")
	late := record(t, s, src, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{ir.NextAt(1, ir.V("a"))}, early.Messages())
	assert.Len(t, late.Messages(), 3)
	assert.Equal(t, []ir.SubscriptionWindow{
		ir.Subscribe(0, 2),
		ir.Subscribe(0, 5),
	}, src.Subscriptions())
}

func TestScheduler_SameFrameSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("a|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "--(^!)")
	s.Flush()

	assert.Empty(t, r.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(2, 2)}, src.Subscriptions())
}

func TestScheduler_MaxFrameTruncation(t *testing.T) {
	s := newTestScheduler(t, Config{MaxFrameValue: 4})

	src, err := s.Cold("-a-b-|", nil, nil)
	require.NoError(t, err)

	late, err := s.ColdFromMessages([]ir.TimedMessage{ir.NextAt(2, ir.V("x"))})
	require.NoError(t, err)

	r := record(t, s, src, "")
	lr := record(t, s, late, "---^")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.NextAt(3, ir.V("b")),
	}, r.Messages())
	assert.Empty(t, lr.Messages(), "emission at frame 5 lies past the max frame")
	assert.Equal(t, 1, s.Pending(), "truncated actions stay queued")
	assert.Equal(t, ir.Frame(3), s.Now())
}

func TestScheduler_FlushIdempotent(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-(bc)-|", nil, nil)
	require.NoError(t, err)
	r := record(t, s, src, "")

	s.Flush()
	first := r.Messages()
	frame := s.Now()

	s.Flush()
	assert.Equal(t, first, r.Messages())
	assert.Equal(t, frame, s.Now())
}

func TestScheduler_FlushEmptyQueue(t *testing.T) {
	s := newTestScheduler(t, Config{})

	s.Flush()

	assert.Equal(t, ir.Frame(0), s.Now())
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_AdvanceTo(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b-|", nil, nil)
	require.NoError(t, err)
	r := record(t, s, src, "")

	require.NoError(t, s.AdvanceTo(2))
	assert.Equal(t, ir.Frame(2), s.Now())
	assert.Equal(t, []ir.TimedMessage{ir.NextAt(1, ir.V("a"))}, r.Messages())

	// Same target again is a no-op.
	require.NoError(t, s.AdvanceTo(2))
	assert.Equal(t, ir.Frame(2), s.Now())
	assert.Equal(t, []ir.TimedMessage{ir.NextAt(1, ir.V("a"))}, r.Messages())

	require.NoError(t, s.AdvanceTo(3))
	assert.Len(t, r.Messages(), 2)

	require.NoError(t, s.AdvanceTo(10))
	assert.Equal(t, ir.Frame(10), s.Now())
	assert.Len(t, r.Messages(), 3)
}

func TestScheduler_AdvanceToBackward(t *testing.T) {
	s := newTestScheduler(t, Config{})
	require.NoError(t, s.AdvanceTo(5))

	err := s.AdvanceTo(4)
	require.Error(t, err)
	assert.True(t, IsBackwardAdvance(err))
	assert.Equal(t, ir.Frame(5), s.Now())
}

func TestScheduler_AdvanceToPastMaxFrame(t *testing.T) {
	s := newTestScheduler(t, Config{MaxFrameValue: 3})

	ran := false
	_, err := s.ScheduleAt(3, func() {})
	require.NoError(t, err)
	_, err = s.ScheduleAt(4, func() { ran = true })
	require.NoError(t, err)

	require.NoError(t, s.AdvanceTo(8))

	assert.False(t, ran, "actions past the max frame never run")
	assert.Equal(t, ir.Frame(8), s.Now())
}

func TestScheduler_AutoFlush(t *testing.T) {
	s := newTestScheduler(t, Config{AutoFlush: true})

	src, err := s.Cold("-a|", nil, nil)
	require.NoError(t, err)
	r := record(t, s, src, "")

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.CompleteAt(2),
	}, s.GetMessages(r))
	assert.Equal(t, 0, s.Pending())

	// Manual flush stays valid.
	s.Flush()
	assert.Len(t, r.Messages(), 2)
}

func TestScheduler_MessagesEmptyBeforeExecution(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a|", nil, nil)
	require.NoError(t, err)
	r := record(t, s, src, "")

	msgs := s.GetMessages(r)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestScheduler_ScheduleOrdering(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var order []string
	at := func(name string) func() {
		return func() { order = append(order, name+"@"+s.Now().String()) }
	}

	_, err := s.Schedule(2, at("first"))
	require.NoError(t, err)
	_, err = s.Schedule(1, at("second"))
	require.NoError(t, err)
	_, err = s.Schedule(2, at("third"))
	require.NoError(t, err)
	_, err = s.Schedule(-4, at("clamped"))
	require.NoError(t, err)

	s.Flush()

	assert.Equal(t, []string{"clamped@0", "second@1", "first@2", "third@2"}, order)
}

func TestScheduler_ScheduleAtPastClampsToNow(t *testing.T) {
	s := newTestScheduler(t, Config{})
	require.NoError(t, s.AdvanceTo(5))

	a, err := s.ScheduleAt(2, func() {})
	require.NoError(t, err)

	assert.Equal(t, ir.Frame(5), a.Frame())
}

func TestScheduler_CancelledActionNeverRuns(t *testing.T) {
	s := newTestScheduler(t, Config{})

	ran := false
	a, err := s.Schedule(1, func() { ran = true })
	require.NoError(t, err)

	require.True(t, a.Cancel())
	s.Flush()

	assert.False(t, ran)
	assert.True(t, a.Voided())
	assert.Equal(t, ir.Frame(0), s.Now(), "voided actions do not move the clock")
}

func TestScheduler_ActionSchedulesSameFrame(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var order []string
	_, err := s.Schedule(1, func() {
		order = append(order, "outer")
		_, _ = s.Schedule(0, func() { order = append(order, "inner") })
	})
	require.NoError(t, err)
	_, err = s.Schedule(1, func() { order = append(order, "sibling") })
	require.NoError(t, err)

	s.Flush()

	assert.Equal(t, []string{"outer", "sibling", "inner"}, order)
	assert.Equal(t, ir.Frame(1), s.Now())
}

func TestScheduler_ReentrantFlushIsNoop(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var frames []ir.Frame
	_, err := s.Schedule(1, func() {
		assert.Equal(t, StateRunning, s.State())
		s.Flush()
		require.NoError(t, s.AdvanceTo(100))
		frames = append(frames, s.Now())
	})
	require.NoError(t, err)
	_, err = s.Schedule(2, func() { frames = append(frames, s.Now()) })
	require.NoError(t, err)

	s.Flush()

	assert.Equal(t, []ir.Frame{1, 2}, frames)
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_ColdRejectsSubscriptionPoint(t *testing.T) {
	s := newTestScheduler(t, Config{})

	_, err := s.Cold("-^-a", nil, nil)
	require.Error(t, err)
	assert.Equal(t, marble.ErrCodeUnexpectedToken, marble.ParseErrorCodeOf(err))
}

func TestScheduler_ParseErrorsSurfaceImmediately(t *testing.T) {
	s := newTestScheduler(t, Config{})

	_, err := s.Hot("-(a", nil, nil)
	assert.True(t, marble.IsParseError(err))

	src, err := s.Cold("-a", nil, nil)
	require.NoError(t, err)
	_, err = s.Record(src, "!^")
	assert.Equal(t, marble.ErrCodeMisorderedSubscription, marble.ParseErrorCodeOf(err))
}

func TestScheduler_ErrorValue(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-#", nil, "boom")
	require.NoError(t, err)
	r := record(t, s, src, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{ir.ErrorAt(1, "boom")}, r.Messages())
}

func TestScheduler_SourcesStopAfterTerminal(t *testing.T) {
	s := newTestScheduler(t, Config{})

	cold, err := s.Cold("-a|-b", nil, nil)
	require.NoError(t, err)
	hot, err := s.Hot("#-a", nil, nil)
	require.NoError(t, err)

	cr := record(t, s, cold, "")
	hr := record(t, s, hot, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.V("a")),
		ir.CompleteAt(2),
	}, cr.Messages())
	assert.Equal(t, []ir.TimedMessage{ir.ErrorAt(0, "error")}, hr.Messages())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_LateHotSubscriberGetsTerminal(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Hot("-|", nil, nil)
	require.NoError(t, err)
	s.Flush()

	r := record(t, s, src, "")

	assert.Equal(t, []ir.TimedMessage{ir.CompleteAt(1)}, r.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(1, 1)}, src.Subscriptions())
}

func TestScheduler_RecorderMaterializesDiagramPayload(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-x|", ir.Values{'x': ir.Inner("-a|", nil)}, nil)
	require.NoError(t, err)
	r := record(t, s, src, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.Seq(ir.NextAt(1, ir.V("a")), ir.CompleteAt(2))),
		ir.CompleteAt(2),
	}, r.Messages())
}

func TestScheduler_RecordsOperatorOutput(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b|", ir.Scalars(map[rune]int{'a': 1, 'b': 2}), nil)
	require.NoError(t, err)

	doubled := mapValues(src, func(v ir.Value) ir.Value {
		return ir.V(v.(ir.Scalar).V.(int) * 2)
	})
	delayed := delayBy(s, doubled, 2)

	r := record(t, s, delayed, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(3, ir.V(2)),
		ir.NextAt(5, ir.V(4)),
		ir.CompleteAt(6),
	}, r.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(0, 4)}, src.Subscriptions())
}

func TestScheduler_RecorderMaterializesInnerObservable(t *testing.T) {
	s := newTestScheduler(t, Config{})

	inner, err := s.Cold("--a|", nil, nil)
	require.NoError(t, err)
	outer, err := s.Cold("-x|", ir.Values{'x': ir.V(inner)}, nil)
	require.NoError(t, err)

	r := record(t, s, outer, "")

	require.NoError(t, s.AdvanceTo(2))
	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.Nested{Messages: []ir.TimedMessage{}}),
		ir.CompleteAt(2),
	}, r.Messages(), "inner messages appear as they are emitted")

	s.Flush()
	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(1, ir.Seq(ir.NextAt(2, ir.V("a")), ir.CompleteAt(3))),
		ir.CompleteAt(2),
	}, r.Messages())
	assert.Equal(t, []ir.SubscriptionWindow{ir.Subscribe(1, 4)}, inner.Subscriptions())
}

func TestScheduler_SubscriptionPastMaxFrameNeverSubscribes(t *testing.T) {
	s := newTestScheduler(t, Config{MaxFrameValue: 3})

	src, err := s.Cold("a|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "-----^")
	s.Flush()

	assert.Empty(t, r.Messages())
	assert.Empty(t, src.Subscriptions())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_HotCreatedLateDropsPastFrames(t *testing.T) {
	s := newTestScheduler(t, Config{})
	require.NoError(t, s.AdvanceTo(4))

	src, err := s.Hot("-a-b-c-|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "")
	s.Flush()

	assert.Equal(t, []ir.TimedMessage{
		ir.NextAt(5, ir.V("c")),
		ir.CompleteAt(7),
	}, r.Messages())
}

func TestConfig_MaxFrameSaturates(t *testing.T) {
	cfg := Config{FrameTimeFactor: 1 << 40, MaxFrameValue: 1 << 40}
	assert.Equal(t, ir.Never-1, cfg.MaxFrame())
}

func TestScheduler_Deterministic(t *testing.T) {
	run := func() []ir.TimedMessage {
		s := newTestScheduler(t, Config{})
		hot, err := s.Hot("--a--b--|", nil, nil)
		require.NoError(t, err)
		cold, err := s.Cold("-x-(yz)|", nil, nil)
		require.NoError(t, err)

		merged := merge(hot, cold)
		r := record(t, s, merged, "")
		s.Flush()
		return r.Messages()
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestScheduler_Dispose(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("-a-b|", nil, nil)
	require.NoError(t, err)
	r := record(t, s, src, "")

	s.Dispose()
	assert.Equal(t, StateDisposed, s.State())
	assert.Equal(t, 0, s.Pending())

	s.Flush()
	assert.Empty(t, r.Messages())

	_, err = s.Hot("-a", nil, nil)
	assert.True(t, IsDisposed(err))
	_, err = s.Cold("-a", nil, nil)
	assert.True(t, IsDisposed(err))
	_, err = s.Schedule(1, func() {})
	assert.True(t, IsDisposed(err))
	_, err = s.ScheduleAt(1, func() {})
	assert.True(t, IsDisposed(err))
	_, err = s.Record(src, "")
	assert.True(t, IsDisposed(err))
	assert.True(t, IsDisposed(s.AdvanceTo(3)))

	// Dispose is idempotent.
	s.Dispose()
	assert.Equal(t, StateDisposed, s.State())
}

func TestScheduler_DisposeFromAction(t *testing.T) {
	s := newTestScheduler(t, Config{})

	ran := false
	_, err := s.Schedule(1, s.Dispose)
	require.NoError(t, err)
	_, err = s.Schedule(2, func() { ran = true })
	require.NoError(t, err)

	s.Flush()

	assert.False(t, ran)
	assert.Equal(t, StateDisposed, s.State())
}

func TestScheduler_RecorderUnsubscribeCancelsDelayedSubscription(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Cold("a|", nil, nil)
	require.NoError(t, err)

	r := record(t, s, src, "---^")
	r.Unsubscribe()
	s.Flush()

	assert.Empty(t, r.Messages())
	assert.Empty(t, src.Subscriptions())
}

func TestScheduler_SourceMessages(t *testing.T) {
	s := newTestScheduler(t, Config{})

	src, err := s.Hot("^-a|", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, marble.MustParse("^-a|", marble.Config{}), src.Messages())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "disposed", StateDisposed.String())
	assert.Equal(t, "unknown", State(42).String())
}
