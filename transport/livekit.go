package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/quality"
)

var errRoomClosed = errors.New("room closed by server")

// LiveKitTransport drives a session over a LiveKit room. Frames ride the
// room's reliable data channel, avatar media arrives as subscribed
// tracks, and the SFU's connection quality updates feed the quality
// pipeline. Requires the "url" and "token" credentials.
type LiveKitTransport struct {
	cfg    Config
	events *Events

	mu        sync.Mutex
	room      *lksdk.Room
	ready     bool
	local     ParticipantInfo
	published map[string]struct{}

	qmu        sync.Mutex
	lastLocal  livekit.ConnectionQuality
	lastRemote livekit.ConnectionQuality
	haveLocal  bool
	haveRemote bool
}

// NewLiveKitTransport returns a disconnected LiveKit adapter.
func NewLiveKitTransport(cfg Config) *LiveKitTransport {
	return &LiveKitTransport{cfg: cfg}
}

// Name returns the provider identifier.
func (t *LiveKitTransport) Name() string { return ProviderLiveKit }

// Bind installs the upward callbacks.
func (t *LiveKitTransport) Bind(ev *Events) { t.events = ev }

// Connect joins the room named by the token. The adapter auto-subscribes
// to every published track and replays the roster already present in the
// room through the bound callbacks.
func (t *LiveKitTransport) Connect(ctx context.Context, creds Credentials) error {
	serverURL, err := creds.Require(CredServerURL)
	if err != nil {
		return err
	}
	token, err := creds.Require(CredAccessToken)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.room != nil {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	room, err := lksdk.ConnectToRoomWithToken(serverURL, token, t.roomCallback(), lksdk.WithAutoSubscribe(true))
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	local := ParticipantInfo{
		ID:          room.LocalParticipant.Identity(),
		DisplayName: room.LocalParticipant.Name(),
	}

	t.mu.Lock()
	t.room = room
	t.ready = true
	t.local = local
	t.published = make(map[string]struct{})
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"provider": ProviderLiveKit,
		"identity": local.ID,
	}).Info("Joined room")

	// Members already in the room never reach the join callbacks, so
	// replay them here.
	for _, rp := range room.GetRemoteParticipants() {
		t.events.emitParticipantJoined(ParticipantInfo{ID: rp.Identity(), DisplayName: rp.Name()})
		for _, pub := range rp.TrackPublications() {
			t.events.emitTrackPublished(rp.Identity(), remoteTrackInfo(pub))
		}
	}
	return nil
}

// Disconnect leaves the room. Safe to call repeatedly.
func (t *LiveKitTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	room := t.room
	t.room = nil
	t.ready = false
	t.local = ParticipantInfo{}
	t.published = nil
	t.mu.Unlock()

	if room == nil {
		return nil
	}
	room.Disconnect()
	logrus.WithFields(logrus.Fields{
		"function": "Disconnect",
		"provider": ProviderLiveKit,
	}).Info("Left room")
	return nil
}

// IsReady reports whether the room connection accepts data right now.
func (t *LiveKitTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room != nil && t.ready
}

// SendRaw publishes one frame on the reliable data channel.
func (t *LiveKitTransport) SendRaw(ctx context.Context, data []byte) error {
	t.mu.Lock()
	room, ready := t.room, t.ready
	t.mu.Unlock()

	if room == nil {
		return ErrNotConnected
	}
	if !ready {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := room.LocalParticipant.PublishDataPacket(lksdk.UserData(data), lksdk.WithDataPublishReliable(true)); err != nil {
		return fmt.Errorf("publish data: %w", err)
	}
	return nil
}

// SampleQuality returns the most recent SFU quality pair, or nil before
// the first update arrives.
func (t *LiveKitTransport) SampleQuality() quality.Sample {
	t.qmu.Lock()
	defer t.qmu.Unlock()
	if !t.haveLocal && !t.haveRemote {
		return nil
	}
	return quality.LiveKitSample{Local: t.lastLocal, Remote: t.lastRemote}
}

// LocalParticipant reports the identity the room assigned to this client.
func (t *LiveKitTransport) LocalParticipant() (ParticipantInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.room == nil {
		return ParticipantInfo{}, false
	}
	return t.local, true
}

// PublishTrack publishes a local track into the room and returns the
// server-assigned track sid.
func (t *LiveKitTransport) PublishTrack(ctx context.Context, track *LocalTrack) (string, error) {
	t.mu.Lock()
	room := t.room
	t.mu.Unlock()

	if room == nil {
		return "", ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	source := livekit.TrackSource_MICROPHONE
	if track.Kind() == TrackKindVideo {
		source = livekit.TrackSource_CAMERA
	}
	pub, err := room.LocalParticipant.PublishTrack(track.pion(), &lksdk.TrackPublicationOptions{
		Name:   track.Name(),
		Source: source,
	})
	if err != nil {
		return "", fmt.Errorf("publish track: %w", err)
	}

	t.mu.Lock()
	if t.published != nil {
		t.published[pub.SID()] = struct{}{}
	}
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "PublishTrack",
		"provider": ProviderLiveKit,
		"track":    pub.SID(),
		"kind":     track.Kind().String(),
	}).Info("Published local track")
	return pub.SID(), nil
}

// UnpublishTrack removes a track previously published by this adapter.
func (t *LiveKitTransport) UnpublishTrack(ctx context.Context, trackID string) error {
	t.mu.Lock()
	room := t.room
	_, known := t.published[trackID]
	delete(t.published, trackID)
	t.mu.Unlock()

	if room == nil {
		return ErrNotConnected
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrTrackNotFound, trackID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := room.LocalParticipant.UnpublishTrack(trackID); err != nil {
		return fmt.Errorf("unpublish track: %w", err)
	}
	return nil
}

func (t *LiveKitTransport) roomCallback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished: func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				if !pub.IsSubscribed() {
					pub.SetSubscribed(true)
				}
				t.events.emitTrackPublished(rp.Identity(), remoteTrackInfo(pub))
			},
			OnTrackUnpublished: func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				t.events.emitTrackUnpublished(rp.Identity(), pub.SID())
			},
			OnTrackSubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				if pub.Kind() == lksdk.TrackKindVideo {
					pub.SetVideoQuality(livekit.VideoQuality_HIGH)
				}
				logrus.WithFields(logrus.Fields{
					"function":    "OnTrackSubscribed",
					"participant": rp.Identity(),
					"track":       pub.SID(),
					"kind":        string(pub.Kind()),
				}).Debug("Subscribed to remote track")
			},
			OnDataPacket: func(data lksdk.DataPacket, _ lksdk.DataReceiveParams) {
				if user, ok := data.(*lksdk.UserDataPacket); ok {
					t.events.emitRawMessage(user.Payload)
				}
			},
			OnConnectionQualityChanged: func(update *livekit.ConnectionQualityInfo, p lksdk.Participant) {
				t.recordQuality(update.GetQuality(), p.Identity())
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			t.events.emitParticipantJoined(ParticipantInfo{ID: rp.Identity(), DisplayName: rp.Name()})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			t.events.emitParticipantLeft(rp.Identity())
		},
		OnReconnecting: func() {
			t.setReady(false)
			t.events.emitConnectionLost(ErrConnectionInterrupted)
		},
		OnReconnected: func() {
			t.setReady(true)
			t.events.emitReconnected()
		},
		OnDisconnected: func() {
			t.mu.Lock()
			remote := t.room != nil
			t.room = nil
			t.ready = false
			t.local = ParticipantInfo{}
			t.published = nil
			t.mu.Unlock()

			// Our own Disconnect already cleared the room; only a close
			// initiated by the far side needs reporting.
			if remote {
				t.events.emitDisconnected(errRoomClosed)
			}
		},
	}
}

func (t *LiveKitTransport) setReady(ready bool) {
	t.mu.Lock()
	if t.room != nil {
		t.ready = ready
	}
	t.mu.Unlock()
}

// recordQuality folds one SFU update into the cached sample. Updates
// arrive per participant; directions missing an observation mirror the
// one just seen so early samples stay meaningful.
func (t *LiveKitTransport) recordQuality(q livekit.ConnectionQuality, identity string) {
	t.mu.Lock()
	localID := t.local.ID
	t.mu.Unlock()

	t.qmu.Lock()
	if identity == localID {
		t.lastLocal = q
		t.haveLocal = true
		if !t.haveRemote {
			t.lastRemote = q
		}
	} else {
		t.lastRemote = q
		t.haveRemote = true
		if !t.haveLocal {
			t.lastLocal = q
		}
	}
	sample := quality.LiveKitSample{Local: t.lastLocal, Remote: t.lastRemote}
	t.qmu.Unlock()

	t.events.emitQuality(sample)
}

func remoteTrackInfo(pub lksdk.TrackPublication) TrackInfo {
	kind := TrackKindAudio
	if pub.Kind() == lksdk.TrackKindVideo {
		kind = TrackKindVideo
	}
	return TrackInfo{
		ID:     pub.SID(),
		Kind:   kind,
		Source: pub.Source().String(),
		Muted:  pub.IsMuted(),
	}
}
