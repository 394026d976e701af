package engine

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// Graphs use one clock to number tasks in creation order (the seq fed into
// the task key) and the Local engine uses another to stamp task events.
// Wall-clock time never participates in ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
