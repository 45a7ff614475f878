// Package clock hands out strictly increasing timestamps.
package clock

import (
	"sync"
	"time"
)

// Resolution matches the microsecond precision of Postgres timestamps, so two
// values that compare as distinct here stay distinct once stored.
const Resolution = time.Microsecond

type Clock interface {
	// Next returns a time strictly after both the previous Next result and after.
	Next(after time.Time) time.Time
}

type Monotonic struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func New() *Monotonic {
	return &Monotonic{now: time.Now}
}

// NewWithSource uses now as the wall clock, for tests.
func NewWithSource(now func() time.Time) *Monotonic {
	return &Monotonic{now: now}
}

func (c *Monotonic) Next(after time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(Resolution)
	if floor := c.last.Add(Resolution); !c.last.IsZero() && t.Before(floor) {
		t = floor
	}
	if !after.IsZero() {
		if floor := after.UTC().Truncate(Resolution).Add(Resolution); t.Before(floor) {
			t = floor
		}
	}
	c.last = t
	return t
}

var _ Clock = (*Monotonic)(nil)
