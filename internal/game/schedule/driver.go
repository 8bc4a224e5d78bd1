package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDriverStopped is returned by Call when the driver loop has exited.
var ErrDriverStopped = errors.New("schedule: driver stopped")

// Driver advances a Scheduler from a wall-clock ticker and serializes all
// host work onto the same goroutine, so weapon state is only ever touched by
// one thread.
//
// Invariant: the owned Scheduler is only accessed from the loop goroutine.
type Driver struct {
	sched    *Scheduler
	interval time.Duration
	logger   *zap.Logger
	work     chan func()
	done     chan struct{}

	mu    sync.Mutex
	ticks map[string]func(dt time.Duration)
	once  sync.Once
}

// NewDriver returns a driver that advances sched every interval.
//
// Precondition: sched must be non-nil; interval must be > 0; logger must be non-nil.
func NewDriver(sched *Scheduler, interval time.Duration, logger *zap.Logger) *Driver {
	if interval <= 0 {
		panic("schedule.NewDriver: interval must be > 0")
	}
	return &Driver{
		sched:    sched,
		interval: interval,
		logger:   logger,
		work:     make(chan func(), 64),
		done:     make(chan struct{}),
		ticks:    make(map[string]func(dt time.Duration)),
	}
}

// RegisterTick registers a per-tick callback under name. Replaces any
// existing callback with the same name.
func (d *Driver) RegisterTick(name string, fn func(dt time.Duration)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ticks[name] = fn
}

// Unregister removes the per-tick callback registered under name.
func (d *Driver) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ticks, name)
}

// Do queues fn to run on the loop goroutine. Blocks if the queue is full.
func (d *Driver) Do(fn func()) {
	select {
	case d.work <- fn:
	case <-d.done:
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
//
// Postcondition: returns nil once fn has run, ctx.Err() if ctx ends first,
// or ErrDriverStopped if the loop has exited.
func (d *Driver) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case d.work <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrDriverStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrDriverStopped
	}
}

// Run drives the scheduler until ctx is cancelled or Stop is called.
// It blocks; callers usually run it from a lifecycle service.
//
// Postcondition: scheduler time advances by the measured wall time of each tick.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	last := time.Now()
	d.logger.Info("tick driver started", zap.Duration("interval", d.interval))
	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return nil
		case <-d.done:
			return nil
		case fn := <-d.work:
			fn()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			fired := d.sched.Advance(dt)
			if fired > 0 {
				d.logger.Debug("scheduler advanced",
					zap.Duration("dt", dt),
					zap.Int("fired", fired),
					zap.Int("pending", d.sched.Pending()),
				)
			}
			d.mu.Lock()
			callbacks := make([]func(time.Duration), 0, len(d.ticks))
			for _, fn := range d.ticks {
				callbacks = append(callbacks, fn)
			}
			d.mu.Unlock()
			for _, fn := range callbacks {
				fn(dt)
			}
		}
	}
}

// Stop ends the loop. Calling Stop more than once is a no-op.
func (d *Driver) Stop() {
	d.once.Do(func() { close(d.done) })
}

// Scheduler returns the driven scheduler. Only use it from code running on
// the loop goroutine (inside Do, Call or a tick callback).
func (d *Driver) Scheduler() *Scheduler {
	return d.sched
}
