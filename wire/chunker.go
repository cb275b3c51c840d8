package wire

import (
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/limits"
)

// Codec encodes outbound messages into frames that fit the active frame
// budget, splitting chat text across chunks when needed.
type Codec struct {
	// MaxEncodedBytes is the hard cap on one encoded frame.
	MaxEncodedBytes int
}

// NewCodec creates a Codec for the given frame budget. The budget is
// validated against the accepted range before use.
func NewCodec(maxEncodedBytes int) (*Codec, error) {
	if err := limits.ValidateFrameBudget(maxEncodedBytes); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return &Codec{MaxEncodedBytes: maxEncodedBytes}, nil
}

// ChunkChat encodes a chat message as one or more frames sharing mid.
// Chunks carry idx 0..n-1 and the last chunk sets fin. Splitting never
// breaks a UTF-8 sequence.
//
// The payload budget per chunk is derived from the frame budget minus the
// measured envelope overhead, divided by four to absorb worst-case JSON
// string escaping. If any encoded chunk still exceeds the frame budget the
// payload budget is halved and the message re-split. A budget that cannot
// carry even a single character returns limits.ErrFrameBudgetTooSmall.
func (c *Codec) ChunkChat(mid, text, from string) ([][]byte, error) {
	if err := limits.ValidateContent(text); err != nil {
		return nil, err
	}

	probe, err := marshalEnvelope(KindChat, mid, 0, true, &ChatPayload{From: from})
	if err != nil {
		return nil, err
	}
	overhead := len(probe)

	maxPayload := (c.MaxEncodedBytes - overhead) / 4
	if maxPayload < 1 {
		return nil, fmt.Errorf("%w: frame budget %d leaves no payload room after %d bytes of envelope overhead",
			limits.ErrFrameBudgetTooSmall, c.MaxEncodedBytes, overhead)
	}

	for {
		parts := splitRunes(text, maxPayload)
		frames, oversize, err := c.encodeChatParts(mid, from, parts)
		if err != nil {
			return nil, err
		}
		if oversize < 0 {
			logrus.WithFields(logrus.Fields{
				"function":    "ChunkChat",
				"mid":         mid,
				"chunks":      len(frames),
				"max_payload": maxPayload,
			}).Debug("Chat message encoded")
			return frames, nil
		}
		if utf8.RuneCountInString(parts[oversize]) <= 1 {
			return nil, fmt.Errorf("%w: frame budget %d cannot carry a single character",
				limits.ErrFrameBudgetTooSmall, c.MaxEncodedBytes)
		}
		maxPayload /= 2
		if maxPayload < 1 {
			return nil, fmt.Errorf("%w: frame budget %d cannot carry a single character",
				limits.ErrFrameBudgetTooSmall, c.MaxEncodedBytes)
		}
		logrus.WithFields(logrus.Fields{
			"function":    "ChunkChat",
			"mid":         mid,
			"max_payload": maxPayload,
		}).Debug("Chunk exceeded frame budget, halving payload budget")
	}
}

// encodeChatParts encodes every part as a frame and validates each against
// the frame budget. It returns the index of the first oversize frame, or -1
// when all frames fit.
func (c *Codec) encodeChatParts(mid, from string, parts []string) ([][]byte, int, error) {
	frames := make([][]byte, 0, len(parts))
	for i, part := range parts {
		frame, err := marshalEnvelope(KindChat, mid, i, i == len(parts)-1, &ChatPayload{Text: part, From: from})
		if err != nil {
			return nil, -1, err
		}
		if err := limits.ValidateFrameSize(frame, c.MaxEncodedBytes); err != nil {
			return nil, i, nil
		}
		frames = append(frames, frame)
	}
	return frames, -1, nil
}

// EncodeEvent encodes a lifecycle event as a single frame.
func (c *Codec) EncodeEvent(mid, event string) ([]byte, error) {
	frame, err := marshalEnvelope(KindEvent, mid, 0, true, &EventPayload{Event: event})
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateFrameSize(frame, c.MaxEncodedBytes); err != nil {
		return nil, fmt.Errorf("%w: event %q: %v", ErrOversizeFrame, event, err)
	}
	return frame, nil
}

// EncodeCommand encodes a command invocation as a single frame. Commands
// are never chunked; an encoding that exceeds the frame budget fails with
// ErrOversizeFrame.
func (c *Codec) EncodeCommand(mid, cmd string, data map[string]any) ([]byte, error) {
	frame, err := marshalEnvelope(KindCommand, mid, 0, true, &CommandPayload{Cmd: cmd, Data: data})
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateFrameSize(frame, c.MaxEncodedBytes); err != nil {
		return nil, fmt.Errorf("%w: command %q: %v", ErrOversizeFrame, cmd, err)
	}
	return frame, nil
}

// EncodeAck encodes a command acknowledgment as a single frame.
func (c *Codec) EncodeAck(mid, cmd string, code int, msg string) ([]byte, error) {
	frame, err := marshalEnvelope(KindCommand, mid, 0, true, &CommandPayload{Cmd: cmd, Code: &code, Msg: msg})
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateFrameSize(frame, c.MaxEncodedBytes); err != nil {
		return nil, fmt.Errorf("%w: ack for %q: %v", ErrOversizeFrame, cmd, err)
	}
	return frame, nil
}

// splitRunes splits text into parts of at most maxBytes bytes without
// breaking a UTF-8 sequence. A single rune wider than maxBytes is emitted
// alone so the caller can detect an unsatisfiable budget.
func splitRunes(text string, maxBytes int) []string {
	var parts []string
	for len(text) > 0 {
		n := 0
		for n < len(text) {
			_, size := utf8.DecodeRuneInString(text[n:])
			if n > 0 && n+size > maxBytes {
				break
			}
			n += size
			if n >= maxBytes {
				break
			}
		}
		parts = append(parts, text[:n])
		text = text[n:]
	}
	return parts
}
