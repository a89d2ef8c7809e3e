package quiz

import "time"

// Stopper cancels a scheduled callback. Stop reports whether the call prevented it from firing.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. Production code uses the wall clock; tests drive a manual one.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// SystemClock schedules on the runtime timer heap.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
