package audio

import "time"

// Clock tracks playback position for primitive buffer sources, which expose
// no position of their own. It owns the start timestamp and paused offset;
// Elapsed is its only query, so the arithmetic stays out of everything else.
type Clock struct {
	now       func() time.Time
	startedAt time.Time
	offset    time.Duration
	running   bool
}

// NewClock creates a stopped clock at offset zero. now defaults to time.Now
// and is injectable for tests.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Start begins counting from the given offset.
func (c *Clock) Start(at time.Duration) {
	c.startedAt = c.now()
	c.offset = at
	c.running = true
}

// Pause freezes the clock at the current elapsed position and returns it.
func (c *Clock) Pause() time.Duration {
	c.offset = c.Elapsed()
	c.running = false
	return c.offset
}

// SetOffset moves a stopped clock; on a running clock it restarts counting
// from the new position.
func (c *Clock) SetOffset(at time.Duration) {
	c.offset = at
	if c.running {
		c.startedAt = c.now()
	}
}

// Elapsed returns the current playback position.
func (c *Clock) Elapsed() time.Duration {
	if !c.running {
		return c.offset
	}
	return c.offset + c.now().Sub(c.startedAt)
}

// Running reports whether the clock is counting.
func (c *Clock) Running() bool {
	return c.running
}
