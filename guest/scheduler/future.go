package scheduler

import "github.com/gammazero/deque"

// Future is a value that becomes available later. Tasks wait for it with
// Await.
type Future[T any] struct {
	value   T
	done    bool
	waiters []func()
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{}
}

// Resolve sets the value and wakes every waiting task. Later calls are
// ignored.
func (f *Future[T]) Resolve(v T) {
	if f.done {
		return
	}
	f.value, f.done = v, true
	waiters := f.waiters
	f.waiters = nil
	for _, wake := range waiters {
		wake()
	}
}

// Done reports whether the future has been resolved.
func (f *Future[T]) Done() bool {
	return f.done
}

// Await suspends the task until f is resolved and returns its value.
func Await[T any](ctx *Context, f *Future[T]) T {
	for !f.done {
		f.waiters = append(f.waiters, ctx.waker())
		ctx.t.park()
	}
	return f.value
}

// Queue is an unbounded FIFO that tasks can wait on.
type Queue[T any] struct {
	items   deque.Deque[T]
	waiters []func()
}

// Push appends v and wakes the tasks waiting for an item.
func (q *Queue[T]) Push(v T) {
	q.items.PushBack(v)
	waiters := q.waiters
	q.waiters = nil
	for _, wake := range waiters {
		wake()
	}
}

// Pop suspends the task until an item is available and removes it.
func (q *Queue[T]) Pop(ctx *Context) T {
	for q.items.Len() == 0 {
		q.waiters = append(q.waiters, ctx.waker())
		ctx.t.park()
	}
	return q.items.PopFront()
}

// TryPop removes the next item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.items.PopFront(), true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return q.items.Len()
}
