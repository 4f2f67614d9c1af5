package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/marbles/internal/ir"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, ir.Frame(0), c.Now(), "new clock should start at frame 0")
	assert.Equal(t, int64(0), c.Seq())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, ir.Frame(100), c.Now(), "clock should start at specified frame")
}

func TestClock_NextSeq_Incrementing(t *testing.T) {
	c := NewClock()

	// First call returns 1 (increments then returns)
	assert.Equal(t, int64(1), c.NextSeq())
	assert.Equal(t, int64(2), c.NextSeq())
	assert.Equal(t, int64(3), c.NextSeq())

	assert.Equal(t, int64(3), c.Seq())
}

func TestClock_Advance_NeverMovesBackward(t *testing.T) {
	c := NewClock()

	c.advance(5)
	assert.Equal(t, ir.Frame(5), c.Now())

	c.advance(3)
	assert.Equal(t, ir.Frame(5), c.Now(), "advance to an earlier frame is ignored")

	c.advance(5)
	assert.Equal(t, ir.Frame(5), c.Now())

	c.advance(9)
	assert.Equal(t, ir.Frame(9), c.Now())
}

func TestClock_Advance_DoesNotTouchSeq(t *testing.T) {
	c := NewClock()
	c.NextSeq()

	c.advance(10)

	assert.Equal(t, int64(1), c.Seq())
}
