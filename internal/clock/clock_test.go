package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClockAdvanceFiresTimers(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewMockClock(start)

	fired := 0
	clk.AfterFunc(time.Second, func() { fired++ })

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, fired)

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.Equal(t, start.Add(time.Second), clk.Now())

	// Fired timers do not fire again.
	clk.Advance(time.Hour)
	assert.Equal(t, 1, fired)
}

func TestMockClockStop(t *testing.T) {
	clk := NewMockClock(time.Now())

	fired := false
	timer := clk.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	clk.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestMockClockReset(t *testing.T) {
	clk := NewMockClock(time.Now())

	fired := 0
	timer := clk.AfterFunc(time.Second, func() { fired++ })

	clk.Advance(time.Second)
	assert.Equal(t, 1, fired)

	// Resetting a fired timer re-arms it.
	assert.False(t, timer.Reset(time.Second))
	clk.Advance(time.Second)
	assert.Equal(t, 2, fired)
}

func TestMockClockRescheduleDuringFire(t *testing.T) {
	clk := NewMockClock(time.Now())

	fired := 0
	var timer Timer
	timer = clk.AfterFunc(time.Second, func() {
		fired++
		if fired < 3 {
			timer.Reset(time.Second)
		}
	})

	// Timers rescheduled inside a callback become eligible on the next
	// Advance, so each period needs its own call.
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
	}
	assert.Equal(t, 3, fired)
}

func TestMockClockSinceAndSet(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewMockClock(start)

	clk.Set(start.Add(90 * time.Second))
	assert.Equal(t, 90*time.Second, clk.Since(start))

	// Moving backwards just repositions the clock.
	clk.Set(start)
	assert.Equal(t, time.Duration(0), clk.Since(start))
}

func TestRealClockBasics(t *testing.T) {
	clk := NewRealClock()

	before := time.Now()
	now := clk.Now()
	assert.False(t, now.Before(before))

	done := make(chan struct{})
	timer := clk.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, timer.Stop())
}
