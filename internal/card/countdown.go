package card

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"timercard/internal/clock"
)

// pollInterval is the countdown poll period: fast enough for smooth 1Hz
// display updates without visible stutter.
const pollInterval = 500 * time.Millisecond

// Countdown polls a server-supplied absolute finish time and formats the
// remaining time for display. It ticks immediately on start, stops
// itself when the remaining time reaches zero, and fires the expiry
// callback at most once per run.
type Countdown struct {
	clk    clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	timer    clock.Timer
	running  bool
	display  string
	finishAt time.Time
	seconds  bool
	onTick   func(display string)
	onExpire func()
}

// NewCountdown creates a stopped countdown.
func NewCountdown(clk clock.Clock, logger *zap.Logger) *Countdown {
	return &Countdown{
		clk:    clk,
		logger: logger.Named("countdown"),
	}
}

// Start begins polling toward finishesAt. If a countdown is already
// running the call is a no-op: the running poll belongs to the same
// active cycle and must not be restarted. The first tick fires
// synchronously, so there is no blank period before the first display.
func (c *Countdown) Start(finishesAt time.Time, showSeconds bool, onTick func(string), onExpire func()) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.finishAt = finishesAt
	c.seconds = showSeconds
	c.onTick = onTick
	c.onExpire = onExpire
	c.mu.Unlock()

	c.step()
}

// step computes and publishes the remaining time, then either reschedules
// the poll or, at zero, stops and fires expiry.
func (c *Countdown) step() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}

	remaining := int(c.finishAt.Sub(c.clk.Now()).Round(time.Second) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	c.display = formatCountdown(remaining, c.seconds)

	tick := c.onTick
	display := c.display

	if remaining == 0 {
		expire := c.onExpire
		c.stopLocked()
		c.mu.Unlock()

		if tick != nil {
			tick(display)
		}
		if expire != nil {
			expire()
		}
		return
	}

	if c.timer == nil {
		c.timer = c.clk.AfterFunc(pollInterval, c.step)
	} else {
		c.timer.Reset(pollInterval)
	}
	c.mu.Unlock()

	if tick != nil {
		tick(display)
	}
}

// Stop cancels the poll and clears the display. Safe to call at any
// time, including when no countdown is active.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.display = ""
}

// stopLocked halts polling. Caller holds c.mu.
func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
	c.onTick = nil
	c.onExpire = nil
}

// Running reports whether a poll is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Display returns the last formatted remaining time, "" when stopped.
func (c *Countdown) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}
