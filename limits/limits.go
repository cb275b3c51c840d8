// Package limits provides centralized size limits for the avatar streaming
// wire protocol. This ensures consistent validation across the codec, the
// transport adapters, and the client facade.
package limits

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxEncodedBytes is the default cap on a single encoded frame.
	// It sits below the smallest payload ceiling observed across supported
	// transports (1 KB data-channel messages with vendor overhead), so a
	// frame that passes validation here is sendable on any of them.
	DefaultMaxEncodedBytes = 950

	// DefaultSendBudgetBytesPerSecond is the default outbound byte budget
	// used to pace multi-frame messages. Vendor data channels throttle
	// around 6 KB/s before dropping frames.
	DefaultSendBudgetBytesPerSecond = 6000

	// MaxLogicalMessageBytes is the maximum size of a single logical
	// message before chunking (64 KB limit). This prevents unbounded
	// reassembly buffers on the receiving side.
	MaxLogicalMessageBytes = 64 * 1024

	// MinFrameBytes is the smallest frame budget that can carry the
	// envelope header plus a usable payload slice.
	MinFrameBytes = 128

	// MaxFrameBytes is the largest frame budget accepted in configuration.
	// No supported transport delivers frames above this size reliably.
	MaxFrameBytes = 64 * 1024
)

var (
	// ErrContentEmpty indicates an empty message or payload was provided
	ErrContentEmpty = errors.New("empty content")

	// ErrContentTooLarge indicates content exceeds the maximum logical size
	ErrContentTooLarge = errors.New("content too large")

	// ErrFrameTooLarge indicates an encoded frame exceeds the frame budget
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameBudgetTooSmall indicates the configured frame budget cannot
	// carry even a minimal payload
	ErrFrameBudgetTooSmall = errors.New("frame budget too small")
)

// ValidateFrameSize validates an encoded frame against the specified budget.
// Returns an error with context including the actual and maximum sizes.
func ValidateFrameSize(frame []byte, maxSize int) error {
	if len(frame) == 0 {
		return ErrContentEmpty
	}
	if len(frame) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFrameTooLarge, len(frame), maxSize)
	}
	return nil
}

// ValidateContent validates a logical message body before chunking.
// Returns an error with context if the content is empty or exceeds
// MaxLogicalMessageBytes.
func ValidateContent(text string) error {
	if len(text) == 0 {
		return ErrContentEmpty
	}
	if len(text) > MaxLogicalMessageBytes {
		return fmt.Errorf("%w: content size %d exceeds limit %d", ErrContentTooLarge, len(text), MaxLogicalMessageBytes)
	}
	return nil
}

// ValidateFrameBudget validates a configured per-frame byte budget against
// the [MinFrameBytes, MaxFrameBytes] range.
func ValidateFrameBudget(budget int) error {
	if budget < MinFrameBytes {
		return fmt.Errorf("%w: budget %d below minimum %d", ErrFrameBudgetTooSmall, budget, MinFrameBytes)
	}
	if budget > MaxFrameBytes {
		return fmt.Errorf("%w: budget %d exceeds limit %d", ErrFrameTooLarge, budget, MaxFrameBytes)
	}
	return nil
}

// ValidateSendBudget validates a configured outbound bytes-per-second budget.
// The budget must be positive; there is no upper bound because pacing only
// slows sending down.
func ValidateSendBudget(bytesPerSecond int) error {
	if bytesPerSecond <= 0 {
		return fmt.Errorf("%w: send budget %d must be positive", ErrFrameBudgetTooSmall, bytesPerSecond)
	}
	return nil
}
