package ir

import (
	"fmt"
	"math"
	"strings"
)

// Frame is a discrete unit of virtual time.
type Frame int64

// Never marks a frame that is never reached, e.g. a subscription that is
// still open when the run ends.
const Never Frame = math.MaxInt64

// String renders Never as "∞".
func (f Frame) String() string {
	if f == Never {
		return "∞"
	}
	return fmt.Sprintf("%d", int64(f))
}

// Kind distinguishes notification variants.
type Kind string

const (
	// KindNext carries a value.
	KindNext Kind = "N"
	// KindError terminates a stream with an error.
	KindError Kind = "E"
	// KindComplete terminates a stream successfully.
	KindComplete Kind = "C"
)

// Notification is one event of a stream.
// Value is set only for KindNext, Err only for KindError.
type Notification struct {
	Kind  Kind  `json:"kind"`
	Value Value `json:"value,omitempty"`
	Err   any   `json:"error,omitempty"`
}

// Next creates a value notification.
func Next(v Value) Notification {
	return Notification{Kind: KindNext, Value: v}
}

// Error creates an error notification.
func Error(err any) Notification {
	return Notification{Kind: KindError, Err: err}
}

// Complete creates a completion notification.
func Complete() Notification {
	return Notification{Kind: KindComplete}
}

// IsTerminal reports whether no further notification may follow.
func (n Notification) IsTerminal() bool {
	return n.Kind == KindError || n.Kind == KindComplete
}

// String returns a compact human-readable form.
func (n Notification) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("Next(%s)", FormatValue(n.Value))
	case KindError:
		return fmt.Sprintf("Error(%v)", n.Err)
	case KindComplete:
		return "Complete"
	default:
		return fmt.Sprintf("Unknown(%q)", string(n.Kind))
	}
}

// TimedMessage is a notification stamped with the frame it occurred at.
type TimedMessage struct {
	Frame        Frame        `json:"frame"`
	Notification Notification `json:"notification"`
}

// NextAt creates a timed value notification.
func NextAt(frame Frame, v Value) TimedMessage {
	return TimedMessage{Frame: frame, Notification: Next(v)}
}

// ErrorAt creates a timed error notification.
func ErrorAt(frame Frame, err any) TimedMessage {
	return TimedMessage{Frame: frame, Notification: Error(err)}
}

// CompleteAt creates a timed completion notification.
func CompleteAt(frame Frame) TimedMessage {
	return TimedMessage{Frame: frame, Notification: Complete()}
}

// String renders the message as "frame:notification".
func (m TimedMessage) String() string {
	return fmt.Sprintf("%s:%s", m.Frame, m.Notification)
}

// FormatMessages renders a message list on one line for diagnostics.
func FormatMessages(msgs []TimedMessage) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// SubscriptionWindow records when a subscriber joined and left a source.
// Unsubscribed is Never while the subscription is still open.
type SubscriptionWindow struct {
	Subscribed   Frame `json:"subscribed"`
	Unsubscribed Frame `json:"unsubscribed"`
}

// Subscribe creates a subscription window.
func Subscribe(subscribed, unsubscribed Frame) SubscriptionWindow {
	return SubscriptionWindow{Subscribed: subscribed, Unsubscribed: unsubscribed}
}

// String renders the window as "[sub, unsub)".
func (w SubscriptionWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Subscribed, w.Unsubscribed)
}
