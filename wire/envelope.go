package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProtocolVersion is the envelope version this implementation speaks.
// Frames carrying any other version are dropped by the receiver.
const ProtocolVersion = 2

// Kind identifies the payload family carried by an envelope.
type Kind string

const (
	// KindChat carries conversational text, possibly split across chunks
	KindChat Kind = "chat"

	// KindEvent carries a lifecycle notification such as audio_start
	KindEvent Kind = "event"

	// KindCommand carries a control instruction or its acknowledgment
	KindCommand Kind = "command"
)

// Well-known command names and lifecycle events.
const (
	CmdSetParams = "set-params"
	CmdInterrupt = "interrupt"

	EventAudioStart = "audio_start"
	EventAudioEnd   = "audio_end"
)

// AckOK is the acknowledgment code peers send for a successfully
// applied command.
const AckOK = 1000

func (k Kind) valid() bool {
	switch k {
	case KindChat, KindEvent, KindCommand:
		return true
	}
	return false
}

// Envelope is the versioned frame wrapper. Every frame on the data channel
// is exactly one JSON-encoded Envelope. Field order is part of the wire
// contract and must not change.
type Envelope struct {
	V    int             `json:"v"`
	Type Kind            `json:"type"`
	MID  string          `json:"mid"`
	Idx  int             `json:"idx"`
	Fin  bool            `json:"fin"`
	Pld  json.RawMessage `json:"pld"`
}

// ChatPayload is the payload of a KindChat envelope. For multi-chunk
// messages Text holds this chunk's slice of the full message.
type ChatPayload struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
}

// EventPayload is the payload of a KindEvent envelope.
type EventPayload struct {
	Event string `json:"evt"`
}

// CommandPayload is the payload of a KindCommand envelope. A non-nil Code
// marks the frame as an acknowledgment rather than an invocation.
type CommandPayload struct {
	Cmd  string         `json:"cmd"`
	Data map[string]any `json:"data,omitempty"`
	Code *int           `json:"code,omitempty"`
	Msg  string         `json:"msg,omitempty"`
}

// IsAck reports whether the command frame acknowledges an earlier
// invocation instead of requesting one.
func (c *CommandPayload) IsAck() bool {
	return c.Code != nil
}

// Succeeded reports whether an acknowledgment carries the success code.
func (c *CommandPayload) Succeeded() bool {
	return c.Code != nil && *c.Code == AckOK
}

// Decode parses a raw frame into an Envelope. Frames that are not valid
// JSON or miss required fields return ErrMalformedFrame; frames with a
// foreign protocol version return ErrUnsupportedVersion and must be
// ignored by callers.
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.V != ProtocolVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, env.V, ProtocolVersion)
	}
	if !env.Type.valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, env.Type)
	}
	if env.MID == "" {
		return nil, fmt.Errorf("%w: missing mid", ErrMalformedFrame)
	}
	if env.Idx < 0 {
		return nil, fmt.Errorf("%w: negative idx %d", ErrMalformedFrame, env.Idx)
	}
	return &env, nil
}

// Chat unmarshals the payload of a KindChat envelope.
func (e *Envelope) Chat() (*ChatPayload, error) {
	if e.Type != KindChat {
		return nil, fmt.Errorf("%w: envelope is %q", ErrPayloadMismatch, e.Type)
	}
	var p ChatPayload
	if err := json.Unmarshal(e.Pld, &p); err != nil {
		return nil, fmt.Errorf("%w: chat payload: %v", ErrMalformedFrame, err)
	}
	return &p, nil
}

// Event unmarshals the payload of a KindEvent envelope.
func (e *Envelope) Event() (*EventPayload, error) {
	if e.Type != KindEvent {
		return nil, fmt.Errorf("%w: envelope is %q", ErrPayloadMismatch, e.Type)
	}
	var p EventPayload
	if err := json.Unmarshal(e.Pld, &p); err != nil {
		return nil, fmt.Errorf("%w: event payload: %v", ErrMalformedFrame, err)
	}
	if p.Event == "" {
		return nil, fmt.Errorf("%w: event payload missing evt", ErrMalformedFrame)
	}
	return &p, nil
}

// Command unmarshals the payload of a KindCommand envelope.
func (e *Envelope) Command() (*CommandPayload, error) {
	if e.Type != KindCommand {
		return nil, fmt.Errorf("%w: envelope is %q", ErrPayloadMismatch, e.Type)
	}
	var p CommandPayload
	if err := json.Unmarshal(e.Pld, &p); err != nil {
		return nil, fmt.Errorf("%w: command payload: %v", ErrMalformedFrame, err)
	}
	if p.Cmd == "" {
		return nil, fmt.Errorf("%w: command payload missing cmd", ErrMalformedFrame)
	}
	return &p, nil
}

// NewMessageID returns a fresh message identifier for outbound envelopes.
func NewMessageID() string {
	return "m-" + uuid.NewString()
}

func marshalEnvelope(kind Kind, mid string, idx int, fin bool, payload any) ([]byte, error) {
	pld, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	frame, err := json.Marshal(&Envelope{
		V:    ProtocolVersion,
		Type: kind,
		MID:  mid,
		Idx:  idx,
		Fin:  fin,
		Pld:  pld,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return frame, nil
}
