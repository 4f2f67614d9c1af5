package engine

import (
	"slices"

	"github.com/roach88/marbles/internal/ir"
)

// Source is an Observable created by the scheduler from a timed message list.
// It logs a subscription window for every subscriber.
type Source interface {
	Observable

	// Messages returns the message list the source was built from.
	Messages() []ir.TimedMessage

	// Subscriptions returns one window per subscription, in subscription order.
	Subscriptions() []ir.SubscriptionWindow
}

var (
	_ Source = (*HotSource)(nil)
	_ Source = (*ColdSource)(nil)
)

// subscriptionLog records subscription windows for a source.
type subscriptionLog struct {
	windows []ir.SubscriptionWindow
}

// open starts a window at now and returns its index.
func (l *subscriptionLog) open(now ir.Frame) int {
	l.windows = append(l.windows, ir.Subscribe(now, ir.Never))
	return len(l.windows) - 1
}

// close ends window i at now.
func (l *subscriptionLog) close(i int, now ir.Frame) {
	l.windows[i].Unsubscribed = now
}

func (l *subscriptionLog) snapshot() []ir.SubscriptionWindow {
	if l.windows == nil {
		return []ir.SubscriptionWindow{}
	}
	return slices.Clone(l.windows)
}
