package participant

import "time"

// TimeProvider defines an interface for time operations to enable
// deterministic testing.
type TimeProvider interface {
	// Now returns the current time
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

var defaultTimeProvider TimeProvider = realTimeProvider{}
