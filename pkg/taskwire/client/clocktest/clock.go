// Package clocktest provides a deterministic Clock for tests.
package clocktest

import (
	"sync"
	"time"

	"github.com/tidelock/taskwire/pkg/taskwire/client"
)

// FakeClock is a manually advanced client.Clock. Timers and tickers fire
// only from Advance, never from wall time.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

var _ client.Clock = (*FakeClock)(nil)

// NewFakeClock returns a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements client.Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer implements client.Clock.
func (c *FakeClock) NewTimer(d time.Duration) client.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{
		clock:    c,
		deadline: c.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.timers = append(c.timers, t)
	return t
}

// NewTicker implements client.Clock.
func (c *FakeClock) NewTicker(d time.Duration) client.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		clock:  c,
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward by d, firing every timer and ticker that
// comes due. Ticker ticks that nobody has consumed yet are coalesced,
// matching time.Ticker behavior.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	remaining := c.timers[:0]
	var due []*fakeTimer
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.deadline.After(now) {
			due = append(due, t)
			continue
		}
		remaining = append(remaining, t)
	}
	c.timers = remaining

	var ticks []tick
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(now) {
			ticks = append(ticks, tick{ch: t.ch, at: t.next})
			t.next = t.next.Add(t.period)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.ch <- t.deadline
	}
	for _, tk := range ticks {
		select {
		case tk.ch <- tk.at:
		default:
		}
	}
}

// TimerCount returns the number of armed, unfired timers. Tests use it to
// wait until the code under test has created its timer before advancing.
func (c *FakeClock) TimerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// TickerCount returns the number of running tickers.
func (c *FakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type tick struct {
	ch chan time.Time
	at time.Time
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, other := range t.clock.timers {
		if other == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTicker struct {
	clock   *FakeClock
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
