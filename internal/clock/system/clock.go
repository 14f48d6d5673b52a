// Package system provides the wall clock used to stamp cycle records.
package system

import "time"

// DefaultPrecision matches the resolution of a Postgres TIMESTAMPTZ, so a
// record read back from the cycle store carries the same CreatedAt it was
// saved with.
const DefaultPrecision = time.Microsecond

// Clock implements fragment.Clock: UTC wall time truncated to a fixed
// precision.
type Clock struct {
	precision time.Duration
}

// New returns a Clock at DefaultPrecision.
func New() *Clock {
	return NewWithPrecision(DefaultPrecision)
}

// NewWithPrecision returns a Clock truncating to precision. Non-positive
// values keep full nanosecond resolution.
func NewWithPrecision(precision time.Duration) *Clock {
	return &Clock{precision: precision}
}

// Now returns the current UTC time truncated to the clock's precision.
func (c Clock) Now() time.Time {
	now := time.Now().UTC()
	if c.precision > 0 {
		now = now.Truncate(c.precision)
	}
	return now
}
