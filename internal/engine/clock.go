package engine

import "time"

// Clock is the monotonic time source the precise engine maps positions
// against. Callers treat it as an opaque clock read.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a wall-backed monotonic clock.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}
