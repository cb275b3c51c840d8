package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstream/client-sdk-go/quality"
)

// recorder collects adapter events for assertions.
type recorder struct {
	mu           sync.Mutex
	raw          [][]byte
	joined       []ParticipantInfo
	left         []string
	published    []TrackInfo
	unpublished  []string
	samples      []quality.Sample
	lost         int
	reconnected  int
	disconnected int
}

func (r *recorder) events() *Events {
	return &Events{
		OnRawMessage: func(data []byte) {
			cp := append([]byte(nil), data...)
			r.mu.Lock()
			r.raw = append(r.raw, cp)
			r.mu.Unlock()
		},
		OnParticipantJoined: func(info ParticipantInfo) {
			r.mu.Lock()
			r.joined = append(r.joined, info)
			r.mu.Unlock()
		},
		OnParticipantLeft: func(id string) {
			r.mu.Lock()
			r.left = append(r.left, id)
			r.mu.Unlock()
		},
		OnTrackPublished: func(participantID string, track TrackInfo) {
			r.mu.Lock()
			r.published = append(r.published, track)
			r.mu.Unlock()
		},
		OnTrackUnpublished: func(participantID, trackID string) {
			r.mu.Lock()
			r.unpublished = append(r.unpublished, trackID)
			r.mu.Unlock()
		},
		OnQuality: func(sample quality.Sample) {
			r.mu.Lock()
			r.samples = append(r.samples, sample)
			r.mu.Unlock()
		},
		OnConnectionLost: func(err error) {
			r.mu.Lock()
			r.lost++
			r.mu.Unlock()
		},
		OnReconnected: func() {
			r.mu.Lock()
			r.reconnected++
			r.mu.Unlock()
		},
		OnDisconnected: func(err error) {
			r.mu.Lock()
			r.disconnected++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) joinedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.joined))
	for i, p := range r.joined {
		ids[i] = p.ID
	}
	return ids
}

func (r *recorder) rawFrames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.raw...)
}

func (r *recorder) counts() (lost, reconnected, disconnected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost, r.reconnected, r.disconnected
}

func (r *recorder) sampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func (r *recorder) unpublishedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unpublished...)
}

func (r *recorder) publishedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.published))
	for i, tr := range r.published {
		ids[i] = tr.ID
	}
	return ids
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func signalCreds(srv *httptest.Server) Credentials {
	return Credentials{
		CredGatewayURL:  wsURL(srv),
		CredAccessToken: "tok",
		CredChannel:     "room-1",
		CredClientID:    "viewer-9",
	}
}

// echoGateway accepts one join, replies with a fixed roster, streams the
// scripted pushes and forwards every client frame to received.
func echoGateway(t *testing.T, pushes []gatewayMessage, received chan<- gatewayMessage) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer ws.Close()

		var join gatewayMessage
		if !assert.NoError(t, ws.ReadJSON(&join)) {
			return
		}
		assert.Equal(t, opJoin, join.Op)
		assert.Equal(t, "room-1", join.Channel)
		assert.Equal(t, "viewer-9", join.UID)
		assert.Equal(t, "tok", join.Token)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		ws.WriteJSON(gatewayMessage{
			Op:    opJoined,
			Self:  &gatewayPeer{UID: join.UID, Name: "Viewer"},
			Peers: []gatewayPeer{{UID: "avatar-1", Name: "Ava"}},
		})
		for _, push := range pushes {
			ws.WriteJSON(push)
		}

		for {
			var msg gatewayMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case received <- msg:
			default:
			}
		}
	}
}

func TestSignalConnectAndRoster(t *testing.T) {
	received := make(chan gatewayMessage, 16)
	srv := httptest.NewServer(echoGateway(t, nil, received))
	defer srv.Close()

	rec := &recorder{}
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(rec.events())

	require.NoError(t, tr.Connect(context.Background(), signalCreds(srv)))
	defer tr.Disconnect(context.Background())

	assert.True(t, tr.IsReady())
	info, ok := tr.LocalParticipant()
	require.True(t, ok)
	assert.Equal(t, "viewer-9", info.ID)
	assert.Equal(t, "Viewer", info.DisplayName)

	// The joined roster is replayed before Connect returns.
	assert.Equal(t, []string{"avatar-1"}, rec.joinedIDs())

	err := tr.Connect(context.Background(), signalCreds(srv))
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestSignalDataRoundTrip(t *testing.T) {
	envelope := []byte(`{"v":2,"type":"chat","mid":"m-1","idx":0,"fin":true,"pld":{"text":"hi"}}`)
	pushes := []gatewayMessage{{Op: opData, From: "avatar-1", Body: json.RawMessage(envelope)}}

	received := make(chan gatewayMessage, 16)
	srv := httptest.NewServer(echoGateway(t, pushes, received))
	defer srv.Close()

	rec := &recorder{}
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(rec.events())

	require.NoError(t, tr.Connect(context.Background(), signalCreds(srv)))
	defer tr.Disconnect(context.Background())

	// Inbound: the envelope must arrive byte for byte.
	require.Eventually(t, func() bool { return len(rec.rawFrames()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, envelope, rec.rawFrames()[0])

	// Outbound: SendRaw wraps the frame in a data operation.
	require.NoError(t, tr.SendRaw(context.Background(), envelope))
	select {
	case msg := <-received:
		assert.Equal(t, opData, msg.Op)
		assert.Equal(t, string(envelope), string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("gateway never received the data frame")
	}
}

func TestSignalPushedEvents(t *testing.T) {
	up, down := 5, 3
	pushes := []gatewayMessage{
		{Op: opPeerJoin, Peer: &gatewayPeer{UID: "peer-2", Name: "Second"}},
		{Op: opTrack, Track: &gatewayTrack{UID: "avatar-1", ID: "tr-video", Kind: "video", Source: "camera"}},
		{Op: opTrack, Track: &gatewayTrack{UID: "avatar-1", ID: "tr-video", Removed: true}},
		{Op: opPeerLeave, UID: "peer-2"},
		{Op: opQuality, Up: &up, Down: &down},
	}

	received := make(chan gatewayMessage, 16)
	srv := httptest.NewServer(echoGateway(t, pushes, received))
	defer srv.Close()

	rec := &recorder{}
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(rec.events())

	require.NoError(t, tr.Connect(context.Background(), signalCreds(srv)))
	defer tr.Disconnect(context.Background())

	require.Eventually(t, func() bool { return rec.sampleCount() == 1 }, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"avatar-1", "peer-2"}, rec.joinedIDs())
	assert.Equal(t, []string{"tr-video"}, rec.publishedIDs())
	assert.Equal(t, []string{"tr-video"}, rec.unpublishedIDs())

	rec.mu.Lock()
	left := append([]string(nil), rec.left...)
	rec.mu.Unlock()
	assert.Equal(t, []string{"peer-2"}, left)

	sample, ok := tr.SampleQuality().(quality.SignalSample)
	require.True(t, ok)
	assert.Equal(t, 5, sample.Uplink)
	assert.Equal(t, 3, sample.Downlink)
}

func TestSignalJoinRejected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer ws.Close()

		var join gatewayMessage
		if !assert.NoError(t, ws.ReadJSON(&join)) {
			return
		}
		ws.WriteJSON(gatewayMessage{Op: opError, Reason: "invalid token"})
	}))
	defer srv.Close()

	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(&Events{})

	err := tr.Connect(context.Background(), signalCreds(srv))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Contains(t, err.Error(), "invalid token")
	assert.False(t, tr.IsReady())
}

func TestSignalMissingCredentials(t *testing.T) {
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(&Events{})

	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty bag", Credentials{}},
		{"no token", Credentials{CredGatewayURL: "ws://x", CredChannel: "c", CredClientID: "u"}},
		{"no channel", Credentials{CredGatewayURL: "ws://x", CredAccessToken: "t", CredClientID: "u"}},
		{"no uid", Credentials{CredGatewayURL: "ws://x", CredAccessToken: "t", CredChannel: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Connect(context.Background(), tt.creds)
			assert.ErrorIs(t, err, ErrMissingCredential)
		})
	}
}

func TestSignalReconnect(t *testing.T) {
	var conns int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&conns, 1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer ws.Close()

		var join gatewayMessage
		if !assert.NoError(t, ws.ReadJSON(&join)) {
			return
		}
		ws.WriteJSON(gatewayMessage{
			Op:    opJoined,
			Self:  &gatewayPeer{UID: join.UID},
			Peers: []gatewayPeer{{UID: "avatar-1"}},
		})

		// First connection drops right away to force recovery.
		if n == 1 {
			return
		}
		for {
			var msg gatewayMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(rec.events())

	require.NoError(t, tr.Connect(context.Background(), signalCreds(srv)))
	defer tr.Disconnect(context.Background())

	require.Eventually(t, func() bool {
		lost, reconnected, _ := rec.counts()
		return lost == 1 && reconnected == 1 && tr.IsReady()
	}, 5*time.Second, 20*time.Millisecond)

	_, _, disconnected := rec.counts()
	assert.Zero(t, disconnected)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&conns), int32(2))

	// The unchanged roster must not be announced twice.
	assert.Equal(t, []string{"avatar-1"}, rec.joinedIDs())
}

func TestSignalSendBeforeConnect(t *testing.T) {
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(&Events{})

	err := tr.SendRaw(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, ok := tr.LocalParticipant()
	assert.False(t, ok)
	assert.Nil(t, tr.SampleQuality())
}

func TestSignalPublishNotSupported(t *testing.T) {
	tr := NewSignalTransport(DefaultConfig())
	tr.Bind(&Events{})

	track, err := NewAudioTrack("mic")
	require.NoError(t, err)

	_, err = tr.PublishTrack(context.Background(), track)
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.ErrorIs(t, tr.UnpublishTrack(context.Background(), "tr-1"), ErrNotSupported)
}
