package scheduler

import (
	"time"

	"github.com/google/btree"
)

type timerEntry struct {
	deadline time.Duration
	waiters  []func()
}

// Timers holds wake-ups keyed by deadline. Waiters sharing a deadline are
// released together in registration order.
type Timers struct {
	tree *btree.BTreeG[*timerEntry]
}

// NewTimers returns an empty timer set.
func NewTimers() *Timers {
	return &Timers{
		tree: btree.NewG(8, func(a, b *timerEntry) bool { return a.deadline < b.deadline }),
	}
}

// Add registers wake to run once the clock reaches deadline.
func (t *Timers) Add(deadline time.Duration, wake func()) {
	if e, ok := t.tree.Get(&timerEntry{deadline: deadline}); ok {
		e.waiters = append(e.waiters, wake)
		return
	}
	t.tree.ReplaceOrInsert(&timerEntry{deadline: deadline, waiters: []func(){wake}})
}

// Release runs every waiter whose deadline is at or before now, earliest
// deadline first, and returns how many ran.
func (t *Timers) Release(now time.Duration) int {
	var due []func()
	for {
		e, ok := t.tree.Min()
		if !ok || e.deadline > now {
			break
		}
		t.tree.DeleteMin()
		due = append(due, e.waiters...)
	}
	for _, wake := range due {
		wake()
	}
	return len(due)
}

// Len returns the number of distinct pending deadlines.
func (t *Timers) Len() int {
	return t.tree.Len()
}

// Next returns the earliest pending deadline.
func (t *Timers) Next() (time.Duration, bool) {
	e, ok := t.tree.Min()
	if !ok {
		return 0, false
	}
	return e.deadline, true
}
