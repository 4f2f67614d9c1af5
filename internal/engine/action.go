package engine

import "github.com/roach88/marbles/internal/ir"

// Action priorities. Within a frame, control actions (recorder subscribe and
// unsubscribe) run before emissions, so a subscription window [sub, unsub)
// sees emissions at sub and none at unsub.
const (
	priorityControl = iota
	priorityNormal
)

// Action is a unit of work queued for a frame.
//
// Cancelling an action tombstones it: the entry stays in the queue and is
// skipped when popped.
type Action struct {
	frame    ir.Frame
	priority int
	seq      int64
	fn       func()
	voided   bool
	executed bool
}

// Frame returns the frame the action is scheduled for.
func (a *Action) Frame() ir.Frame {
	return a.frame
}

// Seq returns the insertion sequence number used to order same-frame actions.
func (a *Action) Seq() int64 {
	return a.seq
}

// Cancel voids the action. It reports false if the action already ran or
// was already voided.
func (a *Action) Cancel() bool {
	if a.executed || a.voided {
		return false
	}
	a.voided = true
	a.fn = nil
	return true
}

// Voided reports whether the action was cancelled before it ran.
func (a *Action) Voided() bool {
	return a.voided
}

// Executed reports whether the action ran.
func (a *Action) Executed() bool {
	return a.executed
}

// before reports whether a sorts ahead of b, ignoring seq.
func (a *Action) before(b *Action) bool {
	if a.frame != b.frame {
		return a.frame < b.frame
	}
	return a.priority < b.priority
}

// pending reports whether the action can still run.
func (a *Action) pending() bool {
	return !a.voided && !a.executed
}

// execute runs the action once. Voided actions are a no-op.
func (a *Action) execute() {
	if !a.pending() {
		return
	}
	a.executed = true
	fn := a.fn
	a.fn = nil
	if fn != nil {
		fn()
	}
}
