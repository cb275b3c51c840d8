package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/quality"
)

const (
	// dataChannelLabel names the reliable channel carrying frames.
	dataChannelLabel = "avatar-data"

	// remotePeerID is the participant id used when the far side sends
	// media without a stream id.
	remotePeerID = "remote"

	// maxAnswerBytes bounds the SDP answer read from the signaling
	// endpoint.
	maxAnswerBytes = 1 << 20
)

// WebRTCTransport drives a session over a direct peer connection. The
// adapter posts an SDP offer to the HTTP signaling endpoint, receives
// the answer in the response body, and carries frames on an ordered
// reliable data channel. Requires the "signal_url" and "token"
// credentials.
type WebRTCTransport struct {
	cfg    Config
	events *Events
	client *http.Client

	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	signalURL string
	token     string
	local     ParticipantInfo
	senders   map[string]*webrtc.RTPSender
	seen      map[string]struct{}
	lost      bool
	closing   bool

	negotiateMu sync.Mutex
}

// NewWebRTCTransport returns a disconnected peer connection adapter.
func NewWebRTCTransport(cfg Config) *WebRTCTransport {
	return &WebRTCTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.ConnectTimeout},
	}
}

// Name returns the provider identifier.
func (t *WebRTCTransport) Name() string { return ProviderWebRTC }

// Bind installs the upward callbacks.
func (t *WebRTCTransport) Bind(ev *Events) { t.events = ev }

// Connect builds the peer connection, runs the offer/answer exchange
// and waits for the data channel to open.
func (t *WebRTCTransport) Connect(ctx context.Context, creds Credentials) error {
	signalURL, err := creds.Require(CredSignalURL)
	if err != nil {
		return err
	}
	token, err := creds.Require(CredAccessToken)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.pc != nil {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.mu.Unlock()

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return fmt.Errorf("register codecs: %w", err)
	}
	se := webrtc.SettingEngine{LoggerFactory: newPionLoggerFactory()}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: t.cfg.ICEServers}},
	})
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}

	// Receive-only transceivers pull the avatar's media without
	// publishing anything back.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	ordered := true
	dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return fmt.Errorf("create data channel: %w", err)
	}

	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.events.emitRawMessage(msg.Data)
	})

	t.installStateHandlers(pc)

	local := ParticipantInfo{ID: creds.Get(CredClientID)}
	if local.ID == "" {
		local.ID = "viewer-" + uuid.NewString()[:8]
	}

	t.mu.Lock()
	t.pc = pc
	t.dc = dc
	t.signalURL = signalURL
	t.token = token
	t.local = local
	t.senders = make(map[string]*webrtc.RTPSender)
	t.seen = make(map[string]struct{})
	t.lost = false
	t.closing = false
	t.mu.Unlock()

	if err := t.negotiate(ctx); err != nil {
		t.teardown()
		return err
	}

	select {
	case <-opened:
	case <-ctx.Done():
		t.teardown()
		return ctx.Err()
	case <-time.After(t.cfg.ConnectTimeout):
		t.teardown()
		return fmt.Errorf("data channel open timed out after %s", t.cfg.ConnectTimeout)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"provider": ProviderWebRTC,
		"identity": local.ID,
	}).Info("Peer connection established")
	return nil
}

// Disconnect closes the peer connection. Safe to call repeatedly.
func (t *WebRTCTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	had := t.pc != nil
	t.mu.Unlock()

	t.teardown()
	if had {
		logrus.WithFields(logrus.Fields{
			"function": "Disconnect",
			"provider": ProviderWebRTC,
		}).Info("Peer connection closed")
	}
	return nil
}

// IsReady reports whether the data channel accepts frames right now.
func (t *WebRTCTransport) IsReady() bool {
	t.mu.Lock()
	dc, lost := t.dc, t.lost
	t.mu.Unlock()
	return dc != nil && !lost && dc.ReadyState() == webrtc.DataChannelStateOpen
}

// SendRaw ships one frame over the data channel.
func (t *WebRTCTransport) SendRaw(ctx context.Context, data []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()

	if dc == nil {
		return ErrNotConnected
	}
	if state := dc.ReadyState(); state != webrtc.DataChannelStateOpen {
		return fmt.Errorf("%w: data channel %s", ErrNotReady, state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := dc.Send(data); err != nil {
		return fmt.Errorf("data channel send: %w", err)
	}
	return nil
}

// SampleQuality snapshots the peer connection statistics.
func (t *WebRTCTransport) SampleQuality() quality.Sample {
	t.mu.Lock()
	pc := t.pc
	t.mu.Unlock()
	if pc == nil {
		return nil
	}
	return quality.StatsSample{Report: pc.GetStats()}
}

// LocalParticipant reports the identity used for this peer.
func (t *WebRTCTransport) LocalParticipant() (ParticipantInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pc == nil {
		return ParticipantInfo{}, false
	}
	return t.local, true
}

// PublishTrack attaches a local track and renegotiates the session.
func (t *WebRTCTransport) PublishTrack(ctx context.Context, track *LocalTrack) (string, error) {
	t.mu.Lock()
	pc := t.pc
	t.mu.Unlock()

	if pc == nil {
		return "", ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sender, err := pc.AddTrack(track.pion())
	if err != nil {
		return "", fmt.Errorf("add track: %w", err)
	}
	if err := t.negotiate(ctx); err != nil {
		pc.RemoveTrack(sender)
		return "", err
	}

	id := track.ID()
	t.mu.Lock()
	if t.senders != nil {
		t.senders[id] = sender
	}
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "PublishTrack",
		"provider": ProviderWebRTC,
		"track":    id,
		"kind":     track.Kind().String(),
	}).Info("Published local track")
	return id, nil
}

// UnpublishTrack detaches a previously published track and renegotiates.
func (t *WebRTCTransport) UnpublishTrack(ctx context.Context, trackID string) error {
	t.mu.Lock()
	pc := t.pc
	sender, known := t.senders[trackID]
	delete(t.senders, trackID)
	t.mu.Unlock()

	if pc == nil {
		return ErrNotConnected
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrTrackNotFound, trackID)
	}
	if err := pc.RemoveTrack(sender); err != nil {
		return fmt.Errorf("remove track: %w", err)
	}
	return t.negotiate(ctx)
}

func (t *WebRTCTransport) installStateHandlers(pc *webrtc.PeerConnection) {
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		logrus.WithFields(logrus.Fields{
			"function": "OnICEConnectionStateChange",
			"state":    s.String(),
		}).Debug("ICE state changed")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logrus.WithFields(logrus.Fields{
			"function": "OnConnectionStateChange",
			"state":    s.String(),
		}).Debug("Peer state changed")

		switch s {
		case webrtc.PeerConnectionStateConnected:
			t.mu.Lock()
			wasLost := t.lost
			t.lost = false
			t.mu.Unlock()
			if wasLost {
				t.events.emitReconnected()
			}
		case webrtc.PeerConnectionStateDisconnected:
			t.mu.Lock()
			t.lost = true
			t.mu.Unlock()
			t.events.emitConnectionLost(ErrConnectionInterrupted)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			t.mu.Lock()
			self := t.closing
			t.pc = nil
			t.dc = nil
			t.senders = nil
			t.seen = nil
			t.mu.Unlock()
			if !self {
				t.events.emitDisconnected(fmt.Errorf("peer connection %s", s))
			}
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		pid := track.StreamID()
		if pid == "" {
			pid = remotePeerID
		}

		t.mu.Lock()
		_, announced := t.seen[pid]
		if t.seen != nil {
			t.seen[pid] = struct{}{}
		}
		t.mu.Unlock()
		if !announced {
			t.events.emitParticipantJoined(ParticipantInfo{ID: pid})
		}

		kind := TrackKindAudio
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			kind = TrackKindVideo
		}
		t.events.emitTrackPublished(pid, TrackInfo{ID: track.ID(), Kind: kind, Source: pid})

		logrus.WithFields(logrus.Fields{
			"function": "OnTrack",
			"kind":     track.Kind().String(),
			"track":    track.ID(),
			"stream":   pid,
		}).Debug("Remote track started")

		go drainTrack(track)
	})
}

// drainTrack keeps reading the remote track. The interceptor chain
// needs a consumer; rendering the media is outside this SDK's scope.
func drainTrack(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

// negotiate runs one non-trickle offer/answer exchange against the
// signaling endpoint.
func (t *WebRTCTransport) negotiate(ctx context.Context) error {
	t.negotiateMu.Lock()
	defer t.negotiateMu.Unlock()

	t.mu.Lock()
	pc := t.pc
	t.mu.Unlock()
	if pc == nil {
		return ErrNotConnected
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := t.exchangeSDP(ctx, pc.LocalDescription().SDP)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// exchangeSDP posts the local offer and returns the remote answer.
func (t *WebRTCTransport) exchangeSDP(ctx context.Context, offer string) (string, error) {
	t.mu.Lock()
	signalURL, token := t.signalURL, t.token
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signalURL, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("build signaling request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Accept", "application/sdp")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signaling request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if err != nil {
		return "", fmt.Errorf("read signaling response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: signaling returned %d", ErrAuthRejected, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("signaling returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func (t *WebRTCTransport) teardown() {
	t.mu.Lock()
	pc := t.pc
	t.closing = true
	t.pc = nil
	t.dc = nil
	t.senders = nil
	t.seen = nil
	t.local = ParticipantInfo{}
	t.lost = false
	t.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "teardown",
				"provider": ProviderWebRTC,
				"error":    err,
			}).Warn("Peer connection close failed")
		}
	}
}
