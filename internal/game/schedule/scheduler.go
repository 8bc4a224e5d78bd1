// Package schedule provides a virtual-time callback scheduler used to sequence
// weapon equip, reload and refire timing on a single logical tick thread.
package schedule

import (
	"container/heap"
	"time"
)

// Handle identifies one scheduled callback. The zero Handle is never issued
// and is always inactive.
type Handle uint64

// entry is one pending callback in the queue.
type entry struct {
	handle Handle
	due    time.Duration
	seq    uint64
	fn     func()
	index  int
}

// queue orders entries by due time, then by scheduling order.
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].due == q[j].due {
		return q[i].seq < q[j].seq
	}
	return q[i].due < q[j].due
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler delivers callbacks keyed by virtual elapsed time.
//
// Scheduler is not safe for concurrent use; all calls must happen on the tick
// thread that owns it (see Driver).
//
// Invariant: callbacks fire in due-time order, FIFO among equal due times.
type Scheduler struct {
	frame   bool
	now     time.Duration
	seq     uint64
	pending queue
	live    map[Handle]*entry
}

// New returns an empty Scheduler at virtual time zero.
//
// Postcondition: Now() == 0 and Pending() == 0.
func New() *Scheduler {
	return &Scheduler{live: make(map[Handle]*entry)}
}

// NewFrame returns a Scheduler that delivers callbacks the way a frame-driven
// engine does: everything due inside an Advance window runs at the end of the
// window, and Now() reports that end time while it runs. Callbacks therefore
// observe how late they are.
//
// Postcondition: Now() == 0 and Pending() == 0.
func NewFrame() *Scheduler {
	return &Scheduler{frame: true, live: make(map[Handle]*entry)}
}

// Now returns the current virtual time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Schedule registers fn to run once after delay has elapsed.
// A negative delay is treated as zero.
//
// Precondition: fn must not be nil.
// Postcondition: Returns a non-zero Handle that is Active until fn runs or
// the handle is cancelled.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Handle {
	if fn == nil {
		panic("schedule: Schedule called with nil callback")
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	e := &entry{
		handle: Handle(s.seq),
		due:    s.now + delay,
		seq:    s.seq,
		fn:     fn,
	}
	heap.Push(&s.pending, e)
	s.live[e.handle] = e
	return e.handle
}

// Cancel invalidates h. Cancelling an unknown, fired or already cancelled
// handle is a no-op.
//
// Postcondition: Active(h) == false and the callback for h will never run.
func (s *Scheduler) Cancel(h Handle) {
	e, ok := s.live[h]
	if !ok {
		return
	}
	delete(s.live, h)
	if e.index >= 0 {
		heap.Remove(&s.pending, e.index)
	}
}

// Active reports whether h is still waiting to fire.
func (s *Scheduler) Active(h Handle) bool {
	_, ok := s.live[h]
	return ok
}

// Pending returns the number of callbacks waiting to fire.
func (s *Scheduler) Pending() int {
	return len(s.live)
}

// Remaining returns how long until h fires, or false if h is not active.
func (s *Scheduler) Remaining(h Handle) (time.Duration, bool) {
	e, ok := s.live[h]
	if !ok {
		return 0, false
	}
	return e.due - s.now, true
}

// Advance moves virtual time forward by dt and runs every callback that
// becomes due, including callbacks scheduled by earlier callbacks within the
// same window. Now() reports each callback's own due time while it runs, or
// the end of the window for a NewFrame scheduler.
//
// Precondition: dt >= 0.
// Postcondition: Now() has advanced by exactly dt; returns the number of
// callbacks run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt < 0 {
		panic("schedule: Advance called with negative duration")
	}
	target := s.now + dt
	if s.frame {
		s.now = target
	}
	fired := 0
	for len(s.pending) > 0 && s.pending[0].due <= target {
		e := heap.Pop(&s.pending).(*entry)
		delete(s.live, e.handle)
		if e.due > s.now {
			s.now = e.due
		}
		e.fn()
		fired++
	}
	s.now = target
	return fired
}

// Clear cancels every pending callback.
//
// Postcondition: Pending() == 0.
func (s *Scheduler) Clear() {
	for h := range s.live {
		delete(s.live, h)
	}
	s.pending = s.pending[:0]
}
