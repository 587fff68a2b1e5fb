// Package scheduler runs cooperative guest tasks.
//
// The host drives the guest with short callbacks: events, ticks and
// reference calls. Tasks spawned on an Executor run only inside
// RunUntilStalled or Tick, one at a time, and give control back at explicit
// suspension points (Sleep, Yield, Await, Queue.Pop). Ticks release timers
// whose deadline has passed and then drain the tasks that became ready.
package scheduler

import (
	"runtime"
	"time"

	"github.com/gammazero/deque"
)

// Executor owns a ready queue of tasks and the timers that wake them.
type Executor struct {
	ready    deque.Deque[*task]
	timers   *Timers
	clock    func() time.Duration
	draining bool
	live     int
}

// NewExecutor returns an executor reading time from clock. A nil clock
// measures time since the executor was created.
func NewExecutor(clock func() time.Duration) *Executor {
	if clock == nil {
		start := time.Now()
		clock = func() time.Duration { return time.Since(start) }
	}
	return &Executor{timers: NewTimers(), clock: clock}
}

// Now returns the executor's clock reading.
func (e *Executor) Now() time.Duration {
	return e.clock()
}

// Timers returns the executor's timer set.
func (e *Executor) Timers() *Timers {
	return e.timers
}

// Pending returns the number of tasks that have not finished or been
// dropped.
func (e *Executor) Pending() int {
	return e.live
}

// Spawn queues fn as a new task. It first runs at the next drain.
func (e *Executor) Spawn(fn func(*Context)) *Handle {
	t := &task{
		exec:   e,
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan any),
		cancel: make(chan struct{}),
	}
	e.live++
	e.wake(t)
	return &Handle{t: t}
}

// Tick releases due timers and runs every task that becomes ready.
func (e *Executor) Tick() {
	e.timers.Release(e.Now())
	e.RunUntilStalled()
}

// RunUntilStalled runs ready tasks until none is left. A call made from
// inside a running task returns immediately; the outer drain picks up
// whatever was queued. A panic in a task is re-raised here.
func (e *Executor) RunUntilStalled() {
	if e.draining {
		return
	}
	e.draining = true
	defer func() { e.draining = false }()

	for e.ready.Len() > 0 {
		t := e.ready.PopFront()
		t.queued = false
		if t.done || t.dropped {
			continue
		}
		e.step(t)
	}
}

func (e *Executor) step(t *task) {
	t.running = true
	defer func() { t.running = false }()
	if !t.started {
		t.started = true
		go t.main()
	} else {
		t.resume <- struct{}{}
	}

	switch m := (<-t.yield).(type) {
	case nil:
	case taskExit:
		t.finish()
	case taskPanic:
		t.finish()
		panic(m.value)
	}
}

func (e *Executor) wake(t *task) {
	if t.done || t.dropped || t.queued {
		return
	}
	t.queued = true
	e.ready.PushBack(t)
}

type (
	taskExit  struct{}
	taskPanic struct{ value any }
)

// task runs on its own goroutine, but only while the draining goroutine is
// blocked waiting on yield, so exactly one side runs at a time.
type task struct {
	exec *Executor
	fn   func(*Context)

	started, queued, running, done, dropped bool
	// exiting is set when a dropped task unwinds from a suspension point.
	exiting bool

	resume chan struct{}
	yield  chan any
	cancel chan struct{}
}

func (t *task) main() {
	defer func() {
		if r := recover(); r != nil && !t.exiting {
			t.yield <- taskPanic{value: r}
			return
		}
		t.yield <- taskExit{}
	}()
	t.fn(&Context{t: t})
}

// park hands control back to the executor until the task is woken.
func (t *task) park() {
	if t.dropped {
		t.exiting = true
		runtime.Goexit()
	}
	t.yield <- nil
	select {
	case <-t.resume:
	case <-t.cancel:
		t.exiting = true
		runtime.Goexit()
	}
}

func (t *task) finish() {
	if !t.done {
		t.done = true
		if !t.dropped {
			t.exec.live--
		}
	}
}

// Handle refers to a spawned task.
type Handle struct {
	t *task
}

// Done reports whether the task ran to completion or panicked.
func (h *Handle) Done() bool {
	return h.t.done
}

// Drop cancels the task. A suspended task is unwound before Drop returns,
// running its deferred calls. A task dropping itself keeps running until
// its next suspension point.
func (h *Handle) Drop() {
	t := h.t
	if t.done || t.dropped {
		return
	}
	t.dropped = true
	t.exec.live--
	if t.started && !t.running {
		close(t.cancel)
		<-t.yield
	}
}
