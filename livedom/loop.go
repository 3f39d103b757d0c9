package livedom

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TimerID identifies a timer armed on a Loop. Zero is never a valid id.
type TimerID uint64

type timer struct {
	id       TimerID
	when     time.Time
	interval time.Duration
	seq      uint64
	fn       func()
}

// Loop is a single-threaded cooperative scheduler. Every callback it runs
// (posted tasks, timeouts, intervals, observer deliveries, event listeners
// triggered from those) runs on whichever goroutine drives the loop, one at
// a time. Scheduling methods are safe to call from any goroutine.
//
// With a *clock.Mock time source the loop runs on virtual time: Advance
// steps the mock clock to each timer deadline in order.
type Loop struct {
	clock clock.Clock

	mu     sync.Mutex
	nextID TimerID
	seq    uint64
	timers map[TimerID]*timer
	tasks  []func()
	wake   chan struct{}
}

// NewLoop creates a loop on the given clock. A nil clock means wall time.
func NewLoop(c clock.Clock) *Loop {
	if c == nil {
		c = clock.New()
	}
	return &Loop{
		clock:  c,
		timers: make(map[TimerID]*timer),
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the loop's time source.
func (l *Loop) Clock() clock.Clock { return l.clock }

// Now returns the loop's current time.
func (l *Loop) Now() time.Time { return l.clock.Now() }

// Post queues fn to run on the next loop turn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// SetTimeout arms a one-shot timer.
func (l *Loop) SetTimeout(d time.Duration, fn func()) TimerID {
	return l.arm(d, 0, fn)
}

// SetInterval arms a repeating timer. Intervals below one millisecond are
// raised to one millisecond.
func (l *Loop) SetInterval(d time.Duration, fn func()) TimerID {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return l.arm(d, d, fn)
}

func (l *Loop) arm(d, interval time.Duration, fn func()) TimerID {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	l.nextID++
	l.seq++
	t := &timer{
		id:       l.nextID,
		when:     l.clock.Now().Add(d),
		interval: interval,
		seq:      l.seq,
		fn:       fn,
	}
	l.timers[t.id] = t
	l.mu.Unlock()
	l.signal()
	return t.id
}

// ClearTimer disarms a timer. Clearing an unknown or fired timer is a no-op.
func (l *Loop) ClearTimer(id TimerID) {
	l.mu.Lock()
	delete(l.timers, id)
	l.mu.Unlock()
}

// Armed reports whether the timer is still scheduled.
func (l *Loop) Armed(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.timers[id]
	return ok
}

// PendingTimers returns the number of armed timers.
func (l *Loop) PendingTimers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Reset drops every queued task and armed timer.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.tasks = nil
	l.timers = make(map[TimerID]*timer)
	l.mu.Unlock()
}

// RunPending drains posted tasks and fires every timer already due.
func (l *Loop) RunPending() {
	l.drain()
	for l.fireNext(l.clock.Now()) {
	}
}

// Advance moves virtual time forward by d, firing timers in deadline order
// and draining tasks after each. On a wall clock it sleeps for d and then
// behaves like RunPending.
func (l *Loop) Advance(d time.Duration) {
	mock, ok := l.clock.(*clock.Mock)
	if !ok {
		l.clock.Sleep(d)
		l.RunPending()
		return
	}
	target := mock.Now().Add(d)
	l.drain()
	for l.fireNext(target) {
	}
	if target.After(mock.Now()) {
		mock.Set(target)
	}
	l.drain()
}

// Run drives the loop on its clock until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		var timerC <-chan time.Time
		var tm *clock.Timer
		if next, ok := l.nextDeadline(); ok {
			tm = l.clock.Timer(next.Sub(l.clock.Now()))
			timerC = tm.C
		}

		select {
		case <-ctx.Done():
			if tm != nil {
				tm.Stop()
			}
			return ctx.Err()
		case <-l.wake:
		case <-timerC:
		}
		if tm != nil {
			tm.Stop()
		}
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.earliestLocked()
	if t == nil {
		return time.Time{}, false
	}
	return t.when, true
}

func (l *Loop) earliestLocked() *timer {
	var best *timer
	for _, t := range l.timers {
		if best == nil || t.when.Before(best.when) || (t.when.Equal(best.when) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// fireNext runs the earliest timer due at or before limit. It reports
// whether a timer ran.
func (l *Loop) fireNext(limit time.Time) bool {
	l.mu.Lock()
	t := l.earliestLocked()
	if t == nil || t.when.After(limit) {
		l.mu.Unlock()
		return false
	}
	when, fn := t.when, t.fn
	if t.interval > 0 {
		l.seq++
		t.when = t.when.Add(t.interval)
		t.seq = l.seq
	} else {
		delete(l.timers, t.id)
	}
	l.mu.Unlock()

	if mock, ok := l.clock.(*clock.Mock); ok && when.After(mock.Now()) {
		mock.Set(when)
	}
	fn()
	l.drain()
	return true
}
