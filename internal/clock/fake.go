// internal/clock/fake.go

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time moves only through Advance,
// through the per-call step configured with SetStep, or, in auto-advance
// mode, through After itself.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu          sync.Mutex
	current     time.Time
	step        time.Duration
	autoAdvance bool
	waiters     []*fakeWaiter
	sleeps      []time.Duration
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Fake returns a FakeClock stopped at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// SetStep makes every call to Now advance the clock by step after
// reading it. A zero step freezes time between Advance calls.
func (c *FakeClock) SetStep(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
}

// SetAutoAdvance makes After advance the clock by the requested
// duration and fire immediately instead of registering a waiter.
func (c *FakeClock) SetAutoAdvance(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoAdvance = enabled
}

// Now returns the fake time, then applies the configured step.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	if c.step > 0 {
		c.current = c.current.Add(c.step)
		c.fireLocked()
	}
	return now
}

// After returns a channel that fires once the fake clock passes now+d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	c.sleeps = append(c.sleeps, d)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	if c.autoAdvance {
		c.current = c.current.Add(d)
		c.fireLocked()
		channel <- c.current
		return channel
	}
	c.waiters = append(c.waiters, &fakeWaiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// Advance moves the clock forward and fires every waiter whose deadline
// has been reached, in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.fireLocked()
}

// Pending reports how many After waiters have not fired yet.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Sleeps returns every duration passed to After, in call order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

func (c *FakeClock) fireLocked() {
	if len(c.waiters) == 0 {
		return
	}
	sort.Slice(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(c.current) {
			w.channel <- c.current
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
}
