package quiz

import (
	"sort"
	"sync"
	"time"
)

// manualClock fires callbacks only when Advance moves time past them.
type manualClock struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func newManualClock() *manualClock {
	return &manualClock{}
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance fires every due callback in time order. Callbacks run without the clock lock
// and may schedule further callbacks, which fire too if they fall inside the window.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.popDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.stopped = true
		c.mu.Unlock()
		next.f()
	}
}

func (c *manualClock) popDueLocked(target time.Duration) *manualTimer {
	live := c.pending[:0]
	for _, t := range c.pending {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.pending = live
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].at != c.pending[j].at {
			return c.pending[i].at < c.pending[j].at
		}
		return c.pending[i].seq < c.pending[j].seq
	})
	if len(c.pending) == 0 || c.pending[0].at > target {
		return nil
	}
	next := c.pending[0]
	c.pending = c.pending[1:]
	return next
}
