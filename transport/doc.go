// Package transport provides the provider adapters that carry avatar
// sessions, hiding LiveKit rooms, direct WebRTC peer connections, and
// websocket signal gateways behind one interface.
//
// # Architecture
//
// Adapters translate provider callbacks into a common Events set and
// expose sending, media publication and quality sampling through the
// Transport interface:
//
//	type Transport interface {
//	    Name() string
//	    Bind(ev *Events)
//	    Connect(ctx context.Context, creds Credentials) error
//	    Disconnect(ctx context.Context) error
//	    IsReady() bool
//	    SendRaw(ctx context.Context, data []byte) error
//	    SampleQuality() quality.Sample
//	    LocalParticipant() (ParticipantInfo, bool)
//	    PublishTrack(ctx context.Context, track *LocalTrack) (string, error)
//	    UnpublishTrack(ctx context.Context, trackID string) error
//	}
//
// Frames handed to SendRaw and delivered by OnRawMessage are opaque
// bytes. The session envelope format lives one layer up; adapters never
// inspect it.
//
// # Adapters
//
// LiveKit rooms:
//
//	tr, err := transport.New(transport.ProviderLiveKit, cfg)
//	// credentials: url, token
//	// frames ride the reliable room data channel
//
// Direct WebRTC:
//
//	tr, err := transport.New(transport.ProviderWebRTC, cfg)
//	// credentials: signal_url, token
//	// SDP offer posted over HTTP, frames on an ordered data channel
//
// Websocket signal gateway:
//
//	tr, err := transport.New(transport.ProviderSignal, cfg)
//	// credentials: gateway_url, token, channel, uid
//	// JSON control protocol, no media publication
//
// Custom adapters register under a provider name:
//
//	transport.Register("myprovider", func(cfg transport.Config) (transport.Transport, error) {
//	    return newMyProvider(cfg), nil
//	})
//
// # Events
//
// Events members are optional; nil callbacks are skipped. Callbacks may
// fire from adapter-owned goroutines, so consumers synchronize their own
// state.
//
// # Quality Samples
//
// Each adapter reports quality in its native shape: the LiveKit adapter
// caches the SFU's ConnectionQuality enum pair, the WebRTC adapter
// snapshots peer connection statistics, and the signal adapter merges
// gateway ordinals with its measured ping round trip. Normalization into
// a comparable score happens in the quality package.
//
// # Error Handling
//
// All errors are wrapped with context using fmt.Errorf and logged with
// structured fields via logrus.WithFields. Sentinel errors are provided
// for common failure modes:
//
//	var (
//	    ErrAlreadyConnected // Connect on a live adapter
//	    ErrNotReady         // send attempted while the link is down
//	    ErrMissingCredential // credential bag lacks a required key
//	    ErrAuthRejected     // provider refused the credentials
//	    ErrNotSupported     // operation the provider cannot perform
//	)
package transport
