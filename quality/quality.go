// Package quality normalizes transport-native network quality reports into
// one uniform shape so callers never branch on the active transport.
package quality

import "time"

// Grade buckets a connection quality score for display.
type Grade int

const (
	// GradeExcellent indicates headroom for full quality media
	GradeExcellent Grade = iota

	// GradeGood indicates minor degradation without visible impact
	GradeGood

	// GradeFair indicates degradation users will start to notice
	GradeFair

	// GradePoor indicates the session is barely usable
	GradePoor
)

// String returns a human-readable representation of the grade.
func (g Grade) String() string {
	switch g {
	case GradeExcellent:
		return "excellent"
	case GradeGood:
		return "good"
	case GradeFair:
		return "fair"
	case GradePoor:
		return "poor"
	default:
		return "unknown"
	}
}

// ConnectionQuality is the uniform quality shape callers consume.
type ConnectionQuality struct {
	// Score is 0-100, higher is better.
	Score int

	// Uplink grades the path from this client outward.
	Uplink Grade

	// Downlink grades the path from the remote side inward.
	Downlink Grade

	// RTT is the round-trip time, measured when the transport provides
	// it and estimated otherwise.
	RTT time.Duration

	// PacketLoss is the loss percentage in the range 0-100.
	PacketLoss float64
}

// Thresholds maps scores to grades. Scores at or above a field's value earn
// that grade.
type Thresholds struct {
	Excellent int
	Good      int
	Fair      int
}

// DefaultThresholds returns the grade boundaries used by Normalize.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Excellent: 85, // nearly lossless, low latency
		Good:      70,
		Fair:      50,
	}
}

// GradeFor buckets a 0-100 score.
func (t Thresholds) GradeFor(score int) Grade {
	switch {
	case score >= t.Excellent:
		return GradeExcellent
	case score >= t.Good:
		return GradeGood
	case score >= t.Fair:
		return GradeFair
	default:
		return GradePoor
	}
}
