package mock

import (
	"context"
	"sync"
	"time"
)

// Clock is a manual clock whose Sleep returns immediately after advancing time
type Clock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	slept []time.Duration
	// OnSleep runs after every Sleep, with the time slept so far
	OnSleep func(elapsed time.Duration)
}

func NewClock() *Clock {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Clock{start: t, now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	hook, elapsed := c.OnSleep, c.now.Sub(c.start)
	c.mu.Unlock()
	if hook != nil {
		hook(elapsed)
	}
	return nil
}

// Advance moves time forward without recording a sleep
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Elapsed is the time passed since the clock was created
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

func (c *Clock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}
