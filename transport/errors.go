package transport

import "errors"

var (
	// ErrAlreadyConnected indicates Connect was called on a live adapter
	ErrAlreadyConnected = errors.New("transport already connected")

	// ErrNotConnected indicates an operation that needs an established
	// connection
	ErrNotConnected = errors.New("transport not connected")

	// ErrNotReady indicates the adapter cannot send right now
	ErrNotReady = errors.New("transport not ready")

	// ErrMissingCredential indicates a required credential key is absent
	ErrMissingCredential = errors.New("missing credential")

	// ErrAuthRejected indicates the provider refused the credentials
	ErrAuthRejected = errors.New("credentials rejected")

	// ErrUnknownProvider indicates a provider name with no registered
	// adapter
	ErrUnknownProvider = errors.New("unknown transport provider")

	// ErrNotSupported indicates an operation this transport cannot
	// perform
	ErrNotSupported = errors.New("operation not supported by transport")

	// ErrTrackNotFound indicates an unpublish for a track id this
	// adapter never published
	ErrTrackNotFound = errors.New("track not found")

	// ErrConnectionInterrupted indicates the provider link dropped and
	// the adapter is attempting to recover it
	ErrConnectionInterrupted = errors.New("connection interrupted")
)
