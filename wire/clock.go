package wire

import "time"

// TimeProvider defines an interface for time operations to enable
// deterministic testing of staleness handling.
type TimeProvider interface {
	// Now returns the current time
	Now() time.Time
}

// DefaultTimeProvider implements TimeProvider using the standard time package.
type DefaultTimeProvider struct{}

// Now returns the current time using time.Now().
func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}
