package scheduler

import "time"

// Context is a running task's handle on its executor.
type Context struct {
	t *task
}

// Executor returns the executor running the task.
func (c *Context) Executor() *Executor {
	return c.t.exec
}

// Sleep suspends the task until the first tick at or after now+d.
func (c *Context) Sleep(d time.Duration) {
	e := c.t.exec
	e.timers.Add(e.Now()+d, c.waker())
	c.t.park()
}

// Yield lets every other ready task run before this one continues.
func (c *Context) Yield() {
	c.t.exec.wake(c.t)
	c.t.park()
}

// Spawn starts a sibling task.
func (c *Context) Spawn(fn func(*Context)) *Handle {
	return c.t.exec.Spawn(fn)
}

func (c *Context) waker() func() {
	t := c.t
	return func() { t.exec.wake(t) }
}
