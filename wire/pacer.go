package wire

import (
	"fmt"
	"time"

	"github.com/avatarstream/client-sdk-go/limits"
)

// Pacer computes the inter-frame delay that keeps a multi-frame send
// inside the outbound byte budget. It is pure arithmetic; the caller
// measures elapsed time and performs the sleep.
type Pacer struct {
	// BytesPerSecond is the outbound byte budget.
	BytesPerSecond int
}

// NewPacer creates a Pacer for the given byte budget.
func NewPacer(bytesPerSecond int) (*Pacer, error) {
	if err := limits.ValidateSendBudget(bytesPerSecond); err != nil {
		return nil, fmt.Errorf("pacer: %w", err)
	}
	return &Pacer{BytesPerSecond: bytesPerSecond}, nil
}

// MinimumSendTime returns the time one frame of the given size must occupy
// under the byte budget, rounded up to the next millisecond.
func (p *Pacer) MinimumSendTime(frameBytes int) time.Duration {
	if frameBytes <= 0 {
		return 0
	}
	ms := (1000*frameBytes + p.BytesPerSecond - 1) / p.BytesPerSecond
	return time.Duration(ms) * time.Millisecond
}

// Delay returns how much longer the caller must wait before sending the
// next frame, given the size of the frame just sent and the time already
// spent sending it. The result is never negative. Callers skip the delay
// after the final frame of a message.
func (p *Pacer) Delay(frameBytes int, elapsed time.Duration) time.Duration {
	min := p.MinimumSendTime(frameBytes)
	if elapsed >= min {
		return 0
	}
	return min - elapsed
}
