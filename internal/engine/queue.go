package engine

import (
	"slices"
	"sort"
)

// actionQueue holds scheduled actions ordered by (frame, priority, seq).
//
// Insertion places a new action after every queued action with the same or
// an earlier key. Since seq only grows, actions with equal frame and priority
// replay in the order they were scheduled.
//
// Voided actions are not removed on cancel. They are dropped lazily when they
// reach the front of the queue.
type actionQueue struct {
	actions []*Action
}

// newActionQueue creates an empty queue.
func newActionQueue() *actionQueue {
	return &actionQueue{
		actions: make([]*Action, 0, 64),
	}
}

// push inserts a into its (frame, priority, seq) position.
func (q *actionQueue) push(a *Action) {
	i := sort.Search(len(q.actions), func(i int) bool {
		return a.before(q.actions[i])
	})
	q.actions = slices.Insert(q.actions, i, a)
}

// peek returns the first pending action without removing it, discarding any
// voided entries in front of it. Returns nil if nothing is pending.
func (q *actionQueue) peek() *Action {
	for len(q.actions) > 0 {
		a := q.actions[0]
		if a.pending() {
			return a
		}
		q.dropFront()
	}
	return nil
}

// pop removes and returns the first pending action, or nil.
func (q *actionQueue) pop() *Action {
	a := q.peek()
	if a != nil {
		q.dropFront()
	}
	return a
}

// dropFront removes the front slot.
func (q *actionQueue) dropFront() {
	// Nil out the slot so the backing array does not keep the action's
	// closure reachable.
	q.actions[0] = nil
	if len(q.actions) == 1 {
		q.actions = q.actions[:0]
		return
	}
	q.actions = q.actions[1:]
}

// pending counts actions that can still run.
func (q *actionQueue) pending() int {
	n := 0
	for _, a := range q.actions {
		if a.pending() {
			n++
		}
	}
	return n
}

// len returns the number of queued slots, tombstones included.
func (q *actionQueue) len() int {
	return len(q.actions)
}

// voidAll cancels every queued action and empties the queue.
func (q *actionQueue) voidAll() int {
	n := 0
	for i, a := range q.actions {
		if a.Cancel() {
			n++
		}
		q.actions[i] = nil
	}
	q.actions = q.actions[:0]
	return n
}
