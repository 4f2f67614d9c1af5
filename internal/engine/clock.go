package engine

import "github.com/roach88/marbles/internal/ir"

// Clock is the scheduler's virtual time source.
//
// It carries two counters:
//   - the current frame, which only moves forward
//   - a logical sequence number stamped on every scheduled action, used to
//     break ties between actions queued for the same frame
//
// Clock is not safe for concurrent use. A scheduler and everything it drives
// run on one logical thread of control.
type Clock struct {
	now ir.Frame
	seq int64
}

// NewClock creates a clock at frame 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at a specific frame.
func NewClockAt(frame ir.Frame) *Clock {
	return &Clock{now: frame}
}

// Now returns the current frame.
func (c *Clock) Now() ir.Frame {
	return c.now
}

// NextSeq returns the next insertion sequence number.
// The first call returns 1.
func (c *Clock) NextSeq() int64 {
	c.seq++
	return c.seq
}

// Seq returns the last issued sequence number without incrementing.
func (c *Clock) Seq() int64 {
	return c.seq
}

// advance moves the clock to frame. Frames behind the current one are ignored,
// so the frame pointer never moves backward.
func (c *Clock) advance(frame ir.Frame) {
	if frame > c.now {
		c.now = frame
	}
}
