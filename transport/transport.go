package transport

import (
	"context"
	"fmt"

	"github.com/avatarstream/client-sdk-go/quality"
)

// Transport is the uniform seam over vendor RTC stacks. One adapter exists
// per provider; callers never see a vendor type through this interface.
//
// Lifecycle: Bind the event callbacks, Connect, exchange data, Disconnect.
// Disconnect is idempotent and never fails because the connection is
// already gone.
type Transport interface {
	// Name identifies the provider ("livekit", "webrtc", "signal").
	Name() string

	// Bind installs the upward callbacks. It must be called before
	// Connect; later calls replace the previous set.
	Bind(ev *Events)

	// Connect establishes the session using provider-specific
	// credentials. Connecting an already connected adapter fails with
	// ErrAlreadyConnected.
	Connect(ctx context.Context, creds Credentials) error

	// Disconnect tears the session down. It is safe to call at any
	// time, in any state, repeatedly.
	Disconnect(ctx context.Context) error

	// IsReady reports whether the adapter can currently send.
	IsReady() bool

	// SendRaw ships one pre-encoded frame over the data channel.
	// Fails with ErrNotReady when the adapter cannot send.
	SendRaw(ctx context.Context, data []byte) error

	// SampleQuality returns the latest transport-native quality
	// observation, or nil when none is available yet.
	SampleQuality() quality.Sample

	// LocalParticipant describes this client as the provider sees it.
	// The second return is false before the connection is established.
	LocalParticipant() (ParticipantInfo, bool)

	// PublishTrack publishes a local media track and returns the
	// provider-assigned track id.
	PublishTrack(ctx context.Context, track *LocalTrack) (string, error)

	// UnpublishTrack removes a previously published track.
	UnpublishTrack(ctx context.Context, trackID string) error
}

// Credential keys understood by the built-in adapters. A credential bag
// carries only the keys its provider needs.
const (
	// CredServerURL is the media server endpoint (LiveKit room URL).
	CredServerURL = "url"

	// CredSignalURL is the HTTP signaling endpoint of the WebRTC
	// adapter.
	CredSignalURL = "signal_url"

	// CredGatewayURL is the websocket gateway endpoint of the signal
	// adapter.
	CredGatewayURL = "gateway_url"

	// CredAccessToken is the session-scoped bearer token. All adapters
	// require it.
	CredAccessToken = "token"

	// CredChannel is the gateway channel to join (signal adapter).
	CredChannel = "channel"

	// CredClientID is the client identity within the channel (signal
	// adapter).
	CredClientID = "uid"
)

// Credentials is the opaque per-provider credential bag minted by a
// session API. Adapters pull the keys they need and reject missing ones.
type Credentials map[string]string

// Get returns the value for key, or the empty string.
func (c Credentials) Get(key string) string {
	return c[key]
}

// Require returns the value for key, failing with ErrMissingCredential
// when the key is absent or empty.
func (c Credentials) Require(key string) (string, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingCredential, key)
	}
	return v, nil
}

// TrackKind distinguishes audio from video tracks.
type TrackKind uint8

const (
	TrackKindAudio TrackKind = iota
	TrackKindVideo
)

// String returns a human-readable representation of the track kind.
func (k TrackKind) String() string {
	switch k {
	case TrackKindAudio:
		return "audio"
	case TrackKindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ParticipantInfo describes a session member as the provider reports it.
type ParticipantInfo struct {
	ID          string
	DisplayName string
}

// TrackInfo describes a remote track as the provider reports it.
type TrackInfo struct {
	ID     string
	Kind   TrackKind
	Source string
	Muted  bool
}

// Events carries the upward callbacks an adapter invokes. Nil members are
// skipped. Callbacks may fire from adapter-owned goroutines; consumers
// synchronize their own state.
type Events struct {
	// OnRawMessage delivers one frame from the data channel, exactly as
	// the peer sent it.
	OnRawMessage func(data []byte)

	// OnParticipantJoined fires when a remote participant appears.
	OnParticipantJoined func(info ParticipantInfo)

	// OnParticipantLeft fires when a remote participant disappears.
	OnParticipantLeft func(id string)

	// OnTrackPublished fires when a remote track becomes available.
	OnTrackPublished func(participantID string, track TrackInfo)

	// OnTrackUnpublished fires when a remote track goes away.
	OnTrackUnpublished func(participantID, trackID string)

	// OnQuality delivers a transport-native quality observation.
	OnQuality func(sample quality.Sample)

	// OnConnectionLost fires when the provider starts recovering a
	// dropped connection.
	OnConnectionLost func(err error)

	// OnReconnected fires when recovery succeeds.
	OnReconnected func()

	// OnDisconnected fires when the connection is gone for good.
	OnDisconnected func(err error)
}

func (e *Events) emitRawMessage(data []byte) {
	if e == nil || e.OnRawMessage == nil {
		return
	}
	e.OnRawMessage(data)
}

func (e *Events) emitParticipantJoined(info ParticipantInfo) {
	if e == nil || e.OnParticipantJoined == nil {
		return
	}
	e.OnParticipantJoined(info)
}

func (e *Events) emitParticipantLeft(id string) {
	if e == nil || e.OnParticipantLeft == nil {
		return
	}
	e.OnParticipantLeft(id)
}

func (e *Events) emitTrackPublished(participantID string, track TrackInfo) {
	if e == nil || e.OnTrackPublished == nil {
		return
	}
	e.OnTrackPublished(participantID, track)
}

func (e *Events) emitTrackUnpublished(participantID, trackID string) {
	if e == nil || e.OnTrackUnpublished == nil {
		return
	}
	e.OnTrackUnpublished(participantID, trackID)
}

func (e *Events) emitQuality(sample quality.Sample) {
	if e == nil || e.OnQuality == nil {
		return
	}
	e.OnQuality(sample)
}

func (e *Events) emitConnectionLost(err error) {
	if e == nil || e.OnConnectionLost == nil {
		return
	}
	e.OnConnectionLost(err)
}

func (e *Events) emitReconnected() {
	if e == nil || e.OnReconnected == nil {
		return
	}
	e.OnReconnected()
}

func (e *Events) emitDisconnected(err error) {
	if e == nil || e.OnDisconnected == nil {
		return
	}
	e.OnDisconnected(err)
}
