package quiz

import (
	"sync"
	"time"
)

const tickInterval = time.Second

// TimerState is the lifecycle of a countdown.
type TimerState int

const (
	TimerStopped TimerState = iota
	TimerRunning
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerExpired:
		return "expired"
	default:
		return "stopped"
	}
}

// Timer counts down whole seconds. onTick receives every new remaining value; onExpire
// fires once when the countdown reaches zero, after which no more ticks are emitted.
// Callbacks run without the timer lock held, so they may call back into the Timer.
type Timer struct {
	clock    Clock
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	state     TimerState
	remaining int
	epoch     uint64
	pending   Stopper
}

func NewTimer(clock Clock, onTick func(remaining int), onExpire func()) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timer{clock: clock, onTick: onTick, onExpire: onExpire}
}

// Start begins a fresh countdown of seconds, discarding any countdown in progress.
func (t *Timer) Start(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.remaining = seconds
	t.state = TimerRunning
	t.armLocked()
}

// Reset is Start under the name the per-question mode uses.
func (t *Timer) Reset(seconds int) {
	t.Start(seconds)
}

// Stop halts the countdown; pending ticks are dropped. Stopping an expired timer is allowed.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	if t.state == TimerRunning {
		t.state = TimerStopped
	}
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) cancelLocked() {
	t.epoch++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) armLocked() {
	epoch := t.epoch
	t.pending = t.clock.AfterFunc(tickInterval, func() { t.tick(epoch) })
}

func (t *Timer) tick(epoch uint64) {
	t.mu.Lock()
	if epoch != t.epoch || t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.remaining--
	expired := t.remaining <= 0
	if expired {
		t.remaining = 0
		t.state = TimerExpired
		t.pending = nil
	} else {
		t.armLocked()
	}
	remaining := t.remaining
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(remaining)
	}
	if expired && t.onExpire != nil {
		t.onExpire()
	}
}
