package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstream/client-sdk-go/quality"
)

func TestMockTransportLifecycle(t *testing.T) {
	m := NewMockTransport()
	m.Bind(&Events{})
	ctx := context.Background()

	assert.ErrorIs(t, m.SendRaw(ctx, []byte("x")), ErrNotConnected)

	require.NoError(t, m.Connect(ctx, Credentials{CredClientID: "me"}))
	assert.ErrorIs(t, m.Connect(ctx, nil), ErrAlreadyConnected)
	assert.True(t, m.IsReady())

	info, ok := m.LocalParticipant()
	require.True(t, ok)
	assert.Equal(t, "me", info.ID)

	require.NoError(t, m.SendRaw(ctx, []byte("frame-1")))
	require.NoError(t, m.SendRaw(ctx, []byte("frame-2")))
	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []byte("frame-1"), sent[0])

	m.SetReady(false)
	assert.ErrorIs(t, m.SendRaw(ctx, []byte("x")), ErrNotReady)

	require.NoError(t, m.Disconnect(ctx))
	assert.False(t, m.IsReady())
	_, ok = m.LocalParticipant()
	assert.False(t, ok)
}

func TestMockTransportInjection(t *testing.T) {
	m := NewMockTransport()
	rec := &recorder{}
	m.Bind(rec.events())

	m.InjectRaw([]byte("frame"))
	m.InjectParticipantJoined(ParticipantInfo{ID: "p1"})
	m.InjectQuality(quality.SignalSample{Uplink: 6, Downlink: 6})
	m.InjectConnectionLost(ErrConnectionInterrupted)
	m.InjectReconnected()
	m.InjectDisconnected(nil)

	assert.Len(t, rec.rawFrames(), 1)
	assert.Equal(t, []string{"p1"}, rec.joinedIDs())
	assert.Equal(t, 1, rec.sampleCount())

	lost, reconnected, disconnected := rec.counts()
	assert.Equal(t, 1, lost)
	assert.Equal(t, 1, reconnected)
	assert.Equal(t, 1, disconnected)
}

func TestMockTransportTracks(t *testing.T) {
	m := NewMockTransport()
	m.Bind(&Events{})
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx, nil))

	track, err := NewAudioTrack("mic")
	require.NoError(t, err)

	id, err := m.PublishTrack(ctx, track)
	require.NoError(t, err)
	assert.Equal(t, "mock-track-1", id)
	assert.Equal(t, []string{id}, m.PublishedTracks())

	require.NoError(t, m.UnpublishTrack(ctx, id))
	assert.ErrorIs(t, m.UnpublishTrack(ctx, id), ErrTrackNotFound)
	assert.Empty(t, m.PublishedTracks())
}
