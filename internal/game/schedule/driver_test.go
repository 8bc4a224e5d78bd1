package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/shooter/internal/game/schedule"
)

func startDriver(t *testing.T, interval time.Duration) (*schedule.Driver, context.CancelFunc) {
	t.Helper()
	d := schedule.NewDriver(schedule.New(), interval, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d, cancel
}

func TestDriver_CallRunsOnLoop(t *testing.T) {
	d, _ := startDriver(t, 10*time.Millisecond)
	var ran atomic.Bool
	err := d.Call(context.Background(), func() { ran.Store(true) })
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestDriver_AdvancesScheduler(t *testing.T) {
	d, _ := startDriver(t, 5*time.Millisecond)
	fired := make(chan struct{}, 1)
	require.NoError(t, d.Call(context.Background(), func() {
		d.Scheduler().Schedule(20*time.Millisecond, func() { fired <- struct{}{} })
	}))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled callback did not fire")
	}
}

func TestDriver_TickCallbackInvoked(t *testing.T) {
	d, _ := startDriver(t, 5*time.Millisecond)
	var count atomic.Int64
	d.RegisterTick("hud", func(time.Duration) { count.Add(1) })
	deadline := time.After(2 * time.Second)
	for count.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("tick callback not invoked")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	d.Unregister("hud")
}

func TestDriver_CallAfterStopReturnsError(t *testing.T) {
	d, cancel := startDriver(t, 5*time.Millisecond)
	cancel()
	d.Stop()
	err := d.Call(context.Background(), func() {})
	assert.ErrorIs(t, err, schedule.ErrDriverStopped)
}

func TestNewDriver_PanicsOnZeroInterval(t *testing.T) {
	assert.Panics(t, func() {
		schedule.NewDriver(schedule.New(), 0, zaptest.NewLogger(t))
	})
}
