package avatarstream

import (
	"github.com/avatarstream/client-sdk-go/participant"
	"github.com/avatarstream/client-sdk-go/quality"
)

// ConnectionState tracks where the session lifecycle currently stands.
type ConnectionState uint8

const (
	// StateDisconnected means no session exists. Connect is valid.
	StateDisconnected ConnectionState = iota

	// StateConnecting means Connect is in flight.
	StateConnecting

	// StateConnected means the session is established and usable.
	StateConnected

	// StateReconnecting means the transport lost its link and is
	// recovering. Participants are retained.
	StateReconnecting

	// StateFailed means the last Connect failed. Connect is valid.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StreamingState is the full observable session snapshot handed to
// subscribers. Every field is a copy; mutating a snapshot never affects
// the client. IsJoined and IsConnecting are never both true.
type StreamingState struct {
	// State is the lifecycle position this snapshot was taken in.
	State ConnectionState

	// IsJoined reports an established session, including one the
	// transport is currently recovering.
	IsJoined bool

	// IsConnecting reports an in-flight Connect.
	IsConnecting bool

	// IsSpeaking reports whether the avatar is currently producing
	// audio, driven by the audio_start and audio_end events.
	IsSpeaking bool

	// Participants lists every session member, the local one first
	// once media has been published.
	Participants []participant.Participant

	// LocalParticipant points at this client's own entry, nil until
	// media has been published.
	LocalParticipant *participant.Participant

	// NetworkQuality is the latest normalized quality observation,
	// nil before the first sample.
	NetworkQuality *quality.ConnectionQuality

	// Err is the most recent connection-level failure, nil while the
	// session is healthy.
	Err error
}
