package bridge

import "sync/atomic"

// Clock is the bridge's monotonic logical clock.
//
// Every journaled call is stamped with a strictly increasing seq from this
// clock, so a session's timeline never depends on wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use. Only the delivery loop
// calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start. Used when a
// journal already holds earlier sessions.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
