package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebRTCExchangeSDP(t *testing.T) {
	const answer = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\n"
	var gotOffer, gotAuth, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		gotOffer = string(body)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/sdp")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(answer))
	}))
	defer srv.Close()

	tr := NewWebRTCTransport(DefaultConfig())
	tr.signalURL = srv.URL
	tr.token = "tok"

	got, err := tr.exchangeSDP(context.Background(), "v=0\r\nOFFER")
	require.NoError(t, err)
	assert.Equal(t, answer, got)
	assert.Equal(t, "v=0\r\nOFFER", gotOffer)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/sdp", gotContentType)
}

func TestWebRTCExchangeSDPAuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewWebRTCTransport(DefaultConfig())
	tr.signalURL = srv.URL
	tr.token = "expired"

	_, err := tr.exchangeSDP(context.Background(), "v=0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRejected)
}

func TestWebRTCExchangeSDPServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewWebRTCTransport(DefaultConfig())
	tr.signalURL = srv.URL
	tr.token = "tok"

	_, err := tr.exchangeSDP(context.Background(), "v=0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "no capacity")
}

func TestWebRTCDisconnectedState(t *testing.T) {
	tr := NewWebRTCTransport(DefaultConfig())
	tr.Bind(&Events{})

	assert.Equal(t, ProviderWebRTC, tr.Name())
	assert.False(t, tr.IsReady())
	assert.Nil(t, tr.SampleQuality())

	_, ok := tr.LocalParticipant()
	assert.False(t, ok)

	err := tr.SendRaw(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, tr.UnpublishTrack(context.Background(), "tr-1"), ErrNotConnected)
	assert.NoError(t, tr.Disconnect(context.Background()))
}

func TestWebRTCConnectRequiresCredentials(t *testing.T) {
	tr := NewWebRTCTransport(DefaultConfig())
	tr.Bind(&Events{})

	err := tr.Connect(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrMissingCredential)

	err = tr.Connect(context.Background(), Credentials{CredSignalURL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, err, ErrMissingCredential)
}
