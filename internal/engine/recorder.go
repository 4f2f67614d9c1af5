package engine

import (
	"slices"

	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

// Recorder is an Observer that logs every notification with the frame it
// arrived at. Create one with Scheduler.Record.
type Recorder struct {
	sched    *Scheduler
	messages []ir.TimedMessage
	sub      Subscription

	// pending is the queued subscribe action of a delayed subscription.
	pending *Action

	// inner holds, by message index, the recorders of inner observables
	// emitted as Next payloads.
	inner map[int]*Recorder

	done bool
}

var _ Observer = (*Recorder)(nil)

func newRecorder(s *Scheduler) *Recorder {
	return &Recorder{
		sched:    s,
		messages: []ir.TimedMessage{},
	}
}

func (r *Recorder) subscribe(obs Observable) {
	if r.done {
		return
	}
	r.pending = nil
	r.sub = obs.Subscribe(r)
}

// Next implements Observer. Diagram payloads are parsed into Nested
// sequences with frames relative to this emission. A Scalar holding an
// Observable is subscribed right away and reads back as Nested too.
func (r *Recorder) Next(v ir.Value) {
	if obs, ok := innerObservable(v); ok {
		r.recordInner(obs)
		return
	}
	r.record(ir.Next(r.materialize(v)))
}

func innerObservable(v ir.Value) (Observable, bool) {
	s, ok := v.(ir.Scalar)
	if !ok {
		return nil, false
	}
	obs, ok := s.V.(Observable)
	return obs, ok
}

func (r *Recorder) recordInner(obs Observable) {
	if r.done {
		return
	}
	if r.inner == nil {
		r.inner = make(map[int]*Recorder)
	}
	child := newRecorder(r.sched)
	r.inner[len(r.messages)] = child
	r.record(ir.Next(ir.Nested{}))
	child.subscribe(obs)
}

// snapshot copies the recorded messages, filling in inner observables with
// what they emitted so far, rebased on their emission frame.
func (r *Recorder) snapshot() []ir.TimedMessage {
	out := slices.Clone(r.messages)
	for i, child := range r.inner {
		origin := out[i].Frame
		msgs := child.snapshot()
		for j := range msgs {
			msgs[j].Frame -= origin
		}
		out[i].Notification = ir.Next(ir.Nested{Messages: msgs})
	}
	return out
}

// Error implements Observer.
func (r *Recorder) Error(err any) {
	r.record(ir.Error(err))
}

// Complete implements Observer.
func (r *Recorder) Complete() {
	r.record(ir.Complete())
}

func (r *Recorder) record(n ir.Notification) {
	if r.done {
		return
	}
	if n.IsTerminal() {
		r.done = true
	}
	r.messages = append(r.messages, ir.TimedMessage{Frame: r.sched.Now(), Notification: n})
}

func (r *Recorder) materialize(v ir.Value) ir.Value {
	switch v.(type) {
	case ir.Diagram, ir.Nested:
	default:
		return v
	}

	cfg := r.sched.MarbleConfig(nil, nil)
	resolved, err := marble.ResolveNested(v, cfg)
	if err != nil {
		r.sched.logger.Warn("nested diagram could not be parsed",
			"frame", r.sched.Now(),
			"error", err,
		)
		return v
	}
	return resolved
}

// Unsubscribe stops recording. A subscription that has not started yet is
// cancelled.
func (r *Recorder) Unsubscribe() {
	if r.pending != nil {
		r.pending.Cancel()
		r.pending = nil
	}
	r.done = true
	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
}

// Messages returns what the recorder has captured so far.
// See Scheduler.GetMessages.
func (r *Recorder) Messages() []ir.TimedMessage {
	return r.sched.GetMessages(r)
}
