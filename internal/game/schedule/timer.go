package schedule

import "time"

// Clock is the subset of Scheduler a Timer needs.
type Clock interface {
	Now() time.Duration
	Schedule(delay time.Duration, fn func()) Handle
	Cancel(h Handle)
	Active(h Handle) bool
}

// Timer owns at most one pending callback for a single concern such as
// equip completion or refire.
//
// Invariant: at most one callback scheduled through a Timer is pending.
type Timer struct {
	clock  Clock
	handle Handle
}

// NewTimer returns a stopped Timer bound to clock.
//
// Precondition: clock must not be nil.
func NewTimer(clock Clock) *Timer {
	return &Timer{clock: clock}
}

// Reset cancels any pending callback and schedules fn after duration.
//
// Postcondition: exactly one callback is pending for this Timer.
func (t *Timer) Reset(duration time.Duration, fn func()) {
	t.clock.Cancel(t.handle)
	t.handle = t.clock.Schedule(duration, fn)
}

// Stop prevents the pending callback from firing. Safe to call multiple times.
//
// Postcondition: Pending() == false.
func (t *Timer) Stop() {
	t.clock.Cancel(t.handle)
	t.handle = 0
}

// Pending reports whether a callback is waiting to fire.
func (t *Timer) Pending() bool {
	return t.handle != 0 && t.clock.Active(t.handle)
}

// Handle returns the handle of the most recently scheduled callback.
func (t *Timer) Handle() Handle {
	return t.handle
}
