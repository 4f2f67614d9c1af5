package engine

import (
	"slices"

	"github.com/roach88/marbles/internal/ir"
)

// ColdSource replays its messages independently for every subscriber,
// rebased to the frame the subscriber joined at.
type ColdSource struct {
	sched    *Scheduler
	messages []ir.TimedMessage
	log      subscriptionLog
}

func newColdSource(s *Scheduler, msgs []ir.TimedMessage) *ColdSource {
	return &ColdSource{
		sched:    s,
		messages: slices.Clone(msgs),
	}
}

// Messages returns the message list the source replays.
func (c *ColdSource) Messages() []ir.TimedMessage {
	return slices.Clone(c.messages)
}

// Subscriptions returns the subscription log.
func (c *ColdSource) Subscriptions() []ir.SubscriptionWindow {
	return c.log.snapshot()
}

// Subscribe queues the source's messages for o, offset by the current frame.
func (c *ColdSource) Subscribe(o Observer) Subscription {
	now := c.sched.Now()
	sub := &coldSubscription{
		source:   c,
		observer: o,
		index:    c.log.open(now),
		actions:  make([]*Action, 0, len(c.messages)),
	}

	for _, m := range c.messages {
		n := m.Notification
		a := c.sched.enqueue(now+m.Frame, func() { sub.deliver(n) })
		sub.actions = append(sub.actions, a)
	}

	c.sched.logger.Debug("cold source subscribed",
		"frame", now,
		"subscription", sub.index,
		"scheduled", len(sub.actions),
	)
	return sub
}

// coldSubscription owns the actions queued for one subscriber.
type coldSubscription struct {
	source   *ColdSource
	observer Observer
	index    int
	actions  []*Action
	closed   bool
}

func (s *coldSubscription) deliver(n ir.Notification) {
	if s.closed {
		return
	}
	if n.IsTerminal() {
		s.close()
	}
	Deliver(s.observer, n)
}

// Unsubscribe voids the subscriber's remaining actions and closes its window.
func (s *coldSubscription) Unsubscribe() {
	if s.closed {
		return
	}
	s.close()
}

func (s *coldSubscription) close() {
	s.closed = true
	s.source.log.close(s.index, s.source.sched.Now())

	voided := 0
	for _, a := range s.actions {
		if a.Cancel() {
			voided++
		}
	}
	s.actions = nil

	if voided > 0 {
		s.source.sched.logger.Debug("cold subscription closed",
			"frame", s.source.sched.Now(),
			"subscription", s.index,
			"voided", voided,
		)
	}
}
