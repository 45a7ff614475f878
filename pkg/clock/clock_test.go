package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextIsStrictlyIncreasingWithFrozenSource(t *testing.T) {
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewWithSource(func() time.Time { return frozen })

	a := c.Next(time.Time{})
	b := c.Next(time.Time{})
	assert.Equal(t, frozen, a)
	assert.Equal(t, frozen.Add(Resolution), b)
}

func TestNextRespectsFloor(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewWithSource(func() time.Time { return now })

	// a turn stored by another replica with a clock running ahead
	ahead := now.Add(time.Second)
	assert.Equal(t, ahead.Add(Resolution), c.Next(ahead))
	assert.Equal(t, ahead.Add(2*Resolution), c.Next(time.Time{}))
}

func TestNextTruncatesToResolution(t *testing.T) {
	c := NewWithSource(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 1500, time.UTC) })
	assert.Equal(t, 1000, c.Next(time.Time{}).Nanosecond())
}
