package wire

import "errors"

var (
	// ErrMalformedFrame indicates a frame that could not be parsed as a
	// protocol envelope
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnsupportedVersion indicates an envelope carrying a protocol
	// version this implementation does not speak
	ErrUnsupportedVersion = errors.New("unsupported protocol version")

	// ErrPayloadMismatch indicates payload access under the wrong
	// envelope type
	ErrPayloadMismatch = errors.New("payload type mismatch")

	// ErrOversizeFrame indicates a single-frame message whose encoding
	// exceeds the frame budget
	ErrOversizeFrame = errors.New("encoded frame exceeds budget")
)
