package intake

import (
	"sync"
	"time"
)

type timerState uint8

const (
	timerIdle timerState = iota
	timerArmed
	timerFired
	timerCancelled
)

func (s timerState) String() string {
	switch s {
	case timerArmed:
		return "armed"
	case timerFired:
		return "fired"
	case timerCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// afterFunc schedules f after d and returns a function that stops it.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// silenceTimer is a re-armable single-shot timer. It shares mu with the
// state it guards: Arm and Cancel must be called with mu held, and the
// expiry callback runs with mu held. Each Arm starts a new generation, so
// an expiry that loses the race against a re-arm or cancel finds its
// generation stale and does nothing.
type silenceTimer struct {
	mu    sync.Locker
	delay time.Duration
	after afterFunc

	// onFire runs with mu held and returns work to run once mu is released.
	onFire func() func()

	gen   uint64
	state timerState
	stop  func() bool
}

func newSilenceTimer(mu sync.Locker, delay time.Duration, after afterFunc, onFire func() func()) *silenceTimer {
	if after == nil {
		after = realAfterFunc
	}
	return &silenceTimer{mu: mu, delay: delay, after: after, onFire: onFire}
}

// Arm cancels any pending expiry and schedules a new one. Caller holds mu.
func (t *silenceTimer) Arm() {
	t.Cancel()
	t.gen++
	gen := t.gen
	t.state = timerArmed
	t.stop = t.after(t.delay, func() { t.expire(gen) })
}

// Cancel stops a pending expiry and reports whether one was armed. Caller
// holds mu.
func (t *silenceTimer) Cancel() bool {
	if t.state != timerArmed {
		return false
	}
	if t.stop != nil {
		t.stop()
	}
	t.state = timerCancelled
	return true
}

func (t *silenceTimer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != timerArmed {
		t.mu.Unlock()
		return
	}
	t.state = timerFired
	work := t.onFire()
	t.mu.Unlock()

	if work != nil {
		work()
	}
}
