package eval

import "sync/atomic"

// Clock is the monotonic logical clock stamping variable bindings.
//
// Every (re)binding of a variable takes a fresh tick. Cached results record
// the ticks of the variables they read, so a rebinding invalidates exactly
// the results depending on it.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// A session only ticks from its single evaluating goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next tick and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current tick without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
