package engine

import (
	"slices"

	"github.com/roach88/marbles/internal/ir"
)

// HotSource emits its messages on one absolute timeline shared by every
// subscriber. Subscribers only see what is emitted while they are subscribed.
type HotSource struct {
	sched    *Scheduler
	messages []ir.TimedMessage
	log      subscriptionLog
	subs     []*hotSubscription
	actions  []*Action

	// terminal is the notification that ended the timeline, if any.
	terminal *ir.Notification
}

func newHotSource(s *Scheduler, msgs []ir.TimedMessage) *HotSource {
	h := &HotSource{
		sched:    s,
		messages: slices.Clone(msgs),
	}

	// Frames before now (negative ones included) are history no subscriber
	// can observe.
	now := s.Now()
	for _, m := range h.messages {
		if m.Frame < now {
			continue
		}
		n := m.Notification
		h.actions = append(h.actions, s.enqueue(m.Frame, func() { h.emit(n) }))
	}

	s.logger.Debug("hot source created", "scheduled", len(h.actions))
	return h
}

// Messages returns the message list the source emits.
func (h *HotSource) Messages() []ir.TimedMessage {
	return slices.Clone(h.messages)
}

// Subscriptions returns the subscription log.
func (h *HotSource) Subscriptions() []ir.SubscriptionWindow {
	return h.log.snapshot()
}

// Subscribe attaches o to the shared timeline. A subscriber that joins after
// the timeline ended receives the terminal notification immediately.
func (h *HotSource) Subscribe(o Observer) Subscription {
	sub := &hotSubscription{
		source:   h,
		observer: o,
		index:    h.log.open(h.sched.Now()),
	}

	if h.terminal != nil {
		sub.deliver(*h.terminal)
		return sub
	}

	h.subs = append(h.subs, sub)
	return sub
}

// emit delivers n to every current subscriber. Nothing is delivered after a
// terminal notification.
func (h *HotSource) emit(n ir.Notification) {
	if h.terminal != nil {
		return
	}
	if n.IsTerminal() {
		h.terminal = &n
		for _, a := range h.actions {
			a.Cancel()
		}
	}
	for _, sub := range slices.Clone(h.subs) {
		sub.deliver(n)
	}
}

func (h *HotSource) remove(sub *hotSubscription) {
	h.subs = slices.DeleteFunc(h.subs, func(s *hotSubscription) bool { return s == sub })
}

// hotSubscription is one subscriber of a hot source.
type hotSubscription struct {
	source   *HotSource
	observer Observer
	index    int
	closed   bool
}

func (s *hotSubscription) deliver(n ir.Notification) {
	if s.closed {
		return
	}
	if n.IsTerminal() {
		s.close()
	}
	Deliver(s.observer, n)
}

// Unsubscribe detaches the subscriber and closes its window. The shared
// timeline keeps running for other subscribers.
func (s *hotSubscription) Unsubscribe() {
	if s.closed {
		return
	}
	s.close()
}

func (s *hotSubscription) close() {
	s.closed = true
	s.source.log.close(s.index, s.source.sched.Now())
	s.source.remove(s)
}
