// Package limits provides centralized size constants and validation functions
// for the avatar streaming wire protocol. It ensures consistent size
// enforcement across the codec, the transport adapters, and the client facade.
//
// # Size Hierarchy
//
// The package defines a hierarchy of limits covering the stages of message
// processing:
//
//   - DefaultMaxEncodedBytes (950 bytes): The default cap on a single encoded
//     frame. It sits below the smallest per-message ceiling observed across
//     the supported transports, so one validated frame is sendable anywhere.
//
//   - DefaultSendBudgetBytesPerSecond (6000 bytes/s): The default outbound
//     byte budget used to pace multi-frame messages so vendor data channels
//     do not drop frames under burst.
//
//   - MaxLogicalMessageBytes (64 KB): The maximum size of one logical message
//     before chunking, bounding reassembly buffers on the receiving side.
//
//   - MinFrameBytes / MaxFrameBytes: The accepted range for a configured
//     frame budget.
//
// # Validation Functions
//
// Each validation function checks for empty input and size violations:
//
//	err := limits.ValidateContent(text)
//	if err != nil {
//	    // ErrContentEmpty or ErrContentTooLarge
//	}
//
// For encoded frames, use ValidateFrameSize with the active budget:
//
//	err := limits.ValidateFrameSize(frame, cfg.MaxEncodedBytes)
//
// # Error Types
//
// The package provides structured errors with context:
//
//   - ErrContentEmpty: Returned when empty or nil input is provided
//   - ErrContentTooLarge: Returned when a logical message exceeds its limit
//   - ErrFrameTooLarge: Returned when an encoded frame exceeds its budget
//   - ErrFrameBudgetTooSmall: Returned when a configured budget cannot carry
//     a minimal payload
package limits
