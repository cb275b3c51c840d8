package avatarstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstream/client-sdk-go/participant"
	"github.com/avatarstream/client-sdk-go/quality"
	"github.com/avatarstream/client-sdk-go/transport"
	"github.com/avatarstream/client-sdk-go/wire"
)

// handlerRecorder captures typed handler invocations for assertions.
type handlerRecorder struct {
	mu       sync.Mutex
	chats    []ChatMessage
	system   []string
	commands []string
	acks     []int
	joined   []string
	left     []string
	pubbed   []string
	unpubbed []string
	quality  []quality.ConnectionQuality
}

func (r *handlerRecorder) handlers() *Handlers {
	return &Handlers{
		OnChatMessage: func(msg ChatMessage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.chats = append(r.chats, msg)
		},
		OnSystemMessage: func(event string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.system = append(r.system, event)
		},
		OnCommand: func(cmd string, data map[string]any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.commands = append(r.commands, cmd)
		},
		OnCommandAck: func(cmd string, code int, msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.acks = append(r.acks, code)
		},
		OnParticipantJoined: func(p participant.Participant) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.joined = append(r.joined, p.ID)
		},
		OnParticipantLeft: func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.left = append(r.left, id)
		},
		OnTrackPublished: func(participantID string, track participant.Track) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.pubbed = append(r.pubbed, track.ID)
		},
		OnTrackUnpublished: func(participantID, trackID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.unpubbed = append(r.unpubbed, trackID)
		},
		OnNetworkQuality: func(q quality.ConnectionQuality) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.quality = append(r.quality, q)
		},
	}
}

func (r *handlerRecorder) chatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

func (r *handlerRecorder) lastChat() ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chats[len(r.chats)-1]
}

func (r *handlerRecorder) systemEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.system...)
}

func (r *handlerRecorder) ackCodes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.acks...)
}

func (r *handlerRecorder) commandNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func (r *handlerRecorder) joinedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.joined...)
}

func (r *handlerRecorder) leftIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.left...)
}

func (r *handlerRecorder) publishedTrackIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pubbed...)
}

func (r *handlerRecorder) qualityCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.quality)
}

func newTestClient(t *testing.T) (*Client, *transport.MockTransport) {
	t.Helper()

	mock := transport.NewMockTransport()
	opts := NewOptions()
	opts.Transport = mock
	opts.Sender = "viewer"
	opts.Config.QualityInterval = 25 * time.Millisecond
	client, err := New(opts)
	require.NoError(t, err)
	return client, mock
}

func connectClient(t *testing.T, client *Client, handlers *Handlers) {
	t.Helper()

	creds := transport.Credentials{transport.CredClientID: "viewer-1"}
	require.NoError(t, client.Connect(context.Background(), creds, handlers))
}

func decodeFrame(t *testing.T, frame []byte) *wire.Envelope {
	t.Helper()

	env, err := wire.Decode(frame)
	require.NoError(t, err)
	return env
}

func TestNewNilOptions(t *testing.T) {
	client, err := New(nil)
	require.NoError(t, err)

	assert.Equal(t, transport.ProviderLiveKit, client.Provider())
	assert.Equal(t, StateDisconnected, client.State().State)
}

func TestNewInvalidConfig(t *testing.T) {
	opts := NewOptions()
	opts.Config.MaxEncodedBytes = 16

	_, err := New(opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestNewUnknownProvider(t *testing.T) {
	opts := NewOptions()
	opts.Provider = "carrier-pigeon"

	_, err := New(opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestConnectSuccess(t *testing.T) {
	client, _ := newTestClient(t)

	var states []ConnectionState
	unsubscribe := client.Subscribe(func(s StreamingState) {
		states = append(states, s.State)
		assert.False(t, s.IsJoined && s.IsConnecting)
	})
	defer unsubscribe()

	connectClient(t, client, nil)

	snap := client.State()
	assert.Equal(t, StateConnected, snap.State)
	assert.True(t, snap.IsJoined)
	assert.False(t, snap.IsConnecting)
	assert.NoError(t, snap.Err)
	assert.Equal(t, []ConnectionState{StateConnecting, StateConnected}, states)
}

func TestConnectWhileConnected(t *testing.T) {
	client, _ := newTestClient(t)
	connectClient(t, client, nil)

	err := client.Connect(context.Background(), transport.Credentials{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, StateConnected, client.State().State)
}

func TestConnectAuthFailureThenRetry(t *testing.T) {
	client, mock := newTestClient(t)
	mock.ConnectErr = transport.ErrAuthRejected

	err := client.Connect(context.Background(), transport.Credentials{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	snap := client.State()
	assert.Equal(t, StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, ErrInvalidCredentials)

	// Failed is retryable.
	mock.ConnectErr = nil
	connectClient(t, client, nil)
	snap = client.State()
	assert.Equal(t, StateConnected, snap.State)
	assert.NoError(t, snap.Err)
}

func TestConnectGenericFailure(t *testing.T) {
	client, mock := newTestClient(t)
	mock.ConnectErr = errors.New("dial refused")

	err := client.Connect(context.Background(), transport.Credentials{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, StateFailed, client.State().State)
}

func TestDisconnectIdempotent(t *testing.T) {
	client, _ := newTestClient(t)

	// Before any connect.
	require.NoError(t, client.Disconnect(context.Background()))
	assert.False(t, client.State().IsJoined)

	connectClient(t, client, nil)
	require.NoError(t, client.Disconnect(context.Background()))
	require.NoError(t, client.Disconnect(context.Background()))

	snap := client.State()
	assert.Equal(t, StateDisconnected, snap.State)
	assert.False(t, snap.IsJoined)
	assert.False(t, snap.IsSpeaking)
	assert.Nil(t, snap.NetworkQuality)
	assert.NoError(t, snap.Err)
}

func TestPublishAudioLifecycle(t *testing.T) {
	client, mock := newTestClient(t)
	connectClient(t, client, nil)

	track, err := transport.NewAudioTrack("mic")
	require.NoError(t, err)

	require.NoError(t, client.PublishAudio(context.Background(), track))

	snap := client.State()
	require.NotNil(t, snap.LocalParticipant)
	assert.Equal(t, "viewer-1", snap.LocalParticipant.ID)
	require.Len(t, snap.LocalParticipant.Tracks, 1)
	assert.Equal(t, "mock-track-1", snap.LocalParticipant.Tracks[0].ID)
	assert.Equal(t, participant.TrackAudio, snap.LocalParticipant.Tracks[0].Kind)
	assert.Equal(t, []string{"mock-track-1"}, mock.PublishedTracks())

	require.NoError(t, client.UnpublishAudio(context.Background()))
	snap = client.State()
	require.NotNil(t, snap.LocalParticipant)
	assert.Empty(t, snap.LocalParticipant.Tracks)
	assert.Empty(t, mock.PublishedTracks())

	err = client.UnpublishAudio(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestPublishBeforeConnect(t *testing.T) {
	client, _ := newTestClient(t)

	track, err := transport.NewAudioTrack("mic")
	require.NoError(t, err)

	err = client.PublishAudio(context.Background(), track)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestPublishKindMismatch(t *testing.T) {
	client, _ := newTestClient(t)
	connectClient(t, client, nil)

	track, err := transport.NewAudioTrack("mic")
	require.NoError(t, err)

	err = client.PublishVideo(context.Background(), track)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMediaDevice)
}

func TestPublishNilTrack(t *testing.T) {
	client, _ := newTestClient(t)
	connectClient(t, client, nil)

	err := client.PublishAudio(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestPublishUnexpectedTransportError(t *testing.T) {
	client, mock := newTestClient(t)
	connectClient(t, client, nil)
	mock.PublishErr = errors.New("vendor exploded")

	track, err := transport.NewVideoTrack("cam")
	require.NoError(t, err)

	err = client.PublishVideo(context.Background(), track)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknown)

	// Media failures never change connection state.
	assert.Equal(t, StateConnected, client.State().State)
}
