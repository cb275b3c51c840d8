package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEnvelopeWireShape pins the exact byte layout of encoded envelopes.
// Peers parse these frames; field order and names are a contract.
func TestEnvelopeWireShape(t *testing.T) {
	tests := []struct {
		name string
		want string
		gen  func() ([]byte, error)
	}{
		{
			name: "chat single chunk",
			want: `{"v":2,"type":"chat","mid":"m-1","idx":0,"fin":true,"pld":{"text":"hi"}}`,
			gen: func() ([]byte, error) {
				return marshalEnvelope(KindChat, "m-1", 0, true, &ChatPayload{Text: "hi"})
			},
		},
		{
			name: "chat middle chunk with sender",
			want: `{"v":2,"type":"chat","mid":"m-1","idx":1,"fin":false,"pld":{"text":"more","from":"user"}}`,
			gen: func() ([]byte, error) {
				return marshalEnvelope(KindChat, "m-1", 1, false, &ChatPayload{Text: "more", From: "user"})
			},
		},
		{
			name: "event",
			want: `{"v":2,"type":"event","mid":"m-2","idx":0,"fin":true,"pld":{"evt":"audio_start"}}`,
			gen: func() ([]byte, error) {
				return marshalEnvelope(KindEvent, "m-2", 0, true, &EventPayload{Event: EventAudioStart})
			},
		},
		{
			name: "command invocation without data",
			want: `{"v":2,"type":"command","mid":"m-3","idx":0,"fin":true,"pld":{"cmd":"interrupt"}}`,
			gen: func() ([]byte, error) {
				return marshalEnvelope(KindCommand, "m-3", 0, true, &CommandPayload{Cmd: CmdInterrupt})
			},
		},
		{
			name: "command acknowledgment",
			want: `{"v":2,"type":"command","mid":"m-4","idx":0,"fin":true,"pld":{"cmd":"set-params","code":1000,"msg":"ok"}}`,
			gen: func() ([]byte, error) {
				code := AckOK
				return marshalEnvelope(KindCommand, "m-4", 0, true, &CommandPayload{Cmd: CmdSetParams, Code: &code, Msg: "ok"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := tt.gen()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(frame))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{
			name:  "valid chat frame",
			frame: `{"v":2,"type":"chat","mid":"m-1","idx":0,"fin":true,"pld":{"text":"hi"}}`,
		},
		{
			name:    "older protocol version",
			frame:   `{"v":1,"type":"chat","mid":"m-1","idx":0,"fin":true,"pld":{"text":"hi"}}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "newer protocol version",
			frame:   `{"v":3,"type":"chat","mid":"m-1","idx":0,"fin":true,"pld":{"text":"hi"}}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "missing version",
			frame:   `{"type":"chat","mid":"m-1","idx":0,"fin":true,"pld":{"text":"hi"}}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "not json",
			frame:   `this is not a frame`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "unknown type",
			frame:   `{"v":2,"type":"video","mid":"m-1","idx":0,"fin":true,"pld":{}}`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "missing mid",
			frame:   `{"v":2,"type":"chat","idx":0,"fin":true,"pld":{"text":"hi"}}`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "negative idx",
			frame:   `{"v":2,"type":"chat","mid":"m-1","idx":-1,"fin":true,"pld":{"text":"hi"}}`,
			wantErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, env)
			assert.Equal(t, ProtocolVersion, env.V)
		})
	}
}

func TestPayloadAccessors(t *testing.T) {
	chatFrame, err := marshalEnvelope(KindChat, "m-1", 0, true, &ChatPayload{Text: "hello", From: "bot"})
	require.NoError(t, err)

	env, err := Decode(chatFrame)
	require.NoError(t, err)

	chat, err := env.Chat()
	require.NoError(t, err)
	assert.Equal(t, "hello", chat.Text)
	assert.Equal(t, "bot", chat.From)

	// wrong-type access fails without touching the payload
	_, err = env.Event()
	assert.ErrorIs(t, err, ErrPayloadMismatch)
	_, err = env.Command()
	assert.ErrorIs(t, err, ErrPayloadMismatch)
}

func TestCommandAckHelpers(t *testing.T) {
	code := AckOK
	ack := &CommandPayload{Cmd: CmdSetParams, Code: &code}
	assert.True(t, ack.IsAck())
	assert.True(t, ack.Succeeded())

	failCode := 4000
	failed := &CommandPayload{Cmd: CmdSetParams, Code: &failCode, Msg: "rejected"}
	assert.True(t, failed.IsAck())
	assert.False(t, failed.Succeeded())

	invocation := &CommandPayload{Cmd: CmdInterrupt}
	assert.False(t, invocation.IsAck())
	assert.False(t, invocation.Succeeded())
}

func TestNewMessageID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		mid := NewMessageID()
		assert.True(t, strings.HasPrefix(mid, "m-"))
		assert.False(t, seen[mid], "message ids must be unique")
		seen[mid] = true
	}
}
