package service

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing Unix seconds. Two calls within the
// same wall-clock second get consecutive values.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock returns a clock that never returns a value at or below last.
func NewClock(last int64) *Clock {
	return &Clock{last: last, now: time.Now}
}

// Next returns max(now, last+1) and records it.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().Unix()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
