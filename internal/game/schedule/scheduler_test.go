package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/shooter/internal/game/schedule"
)

func TestScheduler_FiresAfterDelay(t *testing.T) {
	s := schedule.New()
	var calls int
	h := s.Schedule(500*time.Millisecond, func() { calls++ })
	require.True(t, s.Active(h))

	assert.Equal(t, 0, s.Advance(499*time.Millisecond))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, s.Advance(time.Millisecond))
	assert.Equal(t, 1, calls)
	assert.False(t, s.Active(h))
	assert.Equal(t, 500*time.Millisecond, s.Now())
}

func TestScheduler_NowIsDueTimeDuringCallback(t *testing.T) {
	s := schedule.New()
	var seen time.Duration
	s.Schedule(200*time.Millisecond, func() { seen = s.Now() })
	s.Advance(time.Second)
	assert.Equal(t, 200*time.Millisecond, seen)
	assert.Equal(t, time.Second, s.Now())
}

func TestFrameScheduler_NowIsWindowEndDuringCallback(t *testing.T) {
	s := schedule.NewFrame()
	var seen []time.Duration
	s.Schedule(120*time.Millisecond, func() {
		seen = append(seen, s.Now())
		s.Schedule(50*time.Millisecond, func() { seen = append(seen, s.Now()) })
	})
	s.Schedule(130*time.Millisecond, func() { seen = append(seen, s.Now()) })

	assert.Equal(t, 0, s.Advance(100*time.Millisecond))
	assert.Equal(t, 2, s.Advance(100*time.Millisecond))
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, seen)

	assert.Equal(t, 1, s.Advance(100*time.Millisecond), "callbacks scheduled late count from the window end")
	assert.Equal(t, 300*time.Millisecond, seen[2])
}

func TestScheduler_OrdersByDueThenFIFO(t *testing.T) {
	s := schedule.New()
	var order []string
	s.Schedule(300*time.Millisecond, func() { order = append(order, "c") })
	s.Schedule(100*time.Millisecond, func() { order = append(order, "a") })
	s.Schedule(100*time.Millisecond, func() { order = append(order, "b") })
	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestScheduler_CallbackScheduledInsideWindowRuns(t *testing.T) {
	s := schedule.New()
	var order []time.Duration
	s.Schedule(100*time.Millisecond, func() {
		order = append(order, s.Now())
		s.Schedule(100*time.Millisecond, func() { order = append(order, s.Now()) })
	})
	fired := s.Advance(250 * time.Millisecond)
	assert.Equal(t, 2, fired)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, order)
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	s := schedule.New()
	var calls int
	h := s.Schedule(time.Second, func() { calls++ })
	s.Cancel(h)
	s.Cancel(h)
	s.Cancel(schedule.Handle(0))
	s.Cancel(schedule.Handle(9999))
	s.Advance(2 * time.Second)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_CancelAfterFireIsNoOp(t *testing.T) {
	s := schedule.New()
	h := s.Schedule(0, func() {})
	s.Advance(0)
	assert.False(t, s.Active(h))
	s.Cancel(h)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_NegativeDelayRunsOnNextAdvance(t *testing.T) {
	s := schedule.New()
	var calls int
	s.Schedule(-time.Second, func() { calls++ })
	s.Advance(0)
	assert.Equal(t, 1, calls)
}

func TestScheduler_Remaining(t *testing.T) {
	s := schedule.New()
	h := s.Schedule(time.Second, func() {})
	s.Advance(300 * time.Millisecond)
	d, ok := s.Remaining(h)
	require.True(t, ok)
	assert.Equal(t, 700*time.Millisecond, d)
	s.Cancel(h)
	_, ok = s.Remaining(h)
	assert.False(t, ok)
}

func TestScheduler_Clear(t *testing.T) {
	s := schedule.New()
	var calls int
	for i := 0; i < 5; i++ {
		s.Schedule(time.Duration(i)*time.Millisecond, func() { calls++ })
	}
	s.Clear()
	assert.Equal(t, 0, s.Pending())
	s.Advance(time.Second)
	assert.Equal(t, 0, calls)
}

func TestScheduler_AdvanceNegativePanics(t *testing.T) {
	s := schedule.New()
	assert.Panics(t, func() { s.Advance(-1) })
}

func TestScheduler_ScheduleNilPanics(t *testing.T) {
	s := schedule.New()
	assert.Panics(t, func() { s.Schedule(time.Second, nil) })
}

// TestProperty_Scheduler_FiresInDueOrder asserts that, for arbitrary delays
// and arbitrary cancellations, surviving callbacks fire in non-decreasing
// due-time order and cancelled callbacks never fire.
func TestProperty_Scheduler_FiresInDueOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := schedule.New()
		n := rapid.IntRange(1, 40).Draw(rt, "n")
		var fired []time.Duration
		cancelled := make(map[int]bool)
		handles := make([]schedule.Handle, n)
		for i := 0; i < n; i++ {
			i := i
			delay := time.Duration(rapid.IntRange(0, 1000).Draw(rt, "delay")) * time.Millisecond
			handles[i] = s.Schedule(delay, func() {
				if cancelled[i] {
					rt.Fatalf("cancelled callback %d fired", i)
				}
				fired = append(fired, s.Now())
			})
		}
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "cancel") {
				cancelled[i] = true
				s.Cancel(handles[i])
			}
		}
		step := time.Duration(rapid.IntRange(1, 300).Draw(rt, "step")) * time.Millisecond
		for s.Pending() > 0 {
			s.Advance(step)
		}
		if len(fired) != n-len(cancelled) {
			rt.Fatalf("expected %d callbacks, got %d", n-len(cancelled), len(fired))
		}
		for i := 1; i < len(fired); i++ {
			if fired[i] < fired[i-1] {
				rt.Fatalf("callback %d fired at %v before previous %v", i, fired[i], fired[i-1])
			}
		}
	})
}
