package avatarstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/wire"
)

// SendMessage sends a chat message to the avatar, splitting it into
// paced chunks when it exceeds the frame budget. Chunks of one message
// go out in index order; the final chunk is never delayed. Partial
// sends are not retried, the caller decides whether to resend the whole
// message under a fresh id.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	mid := wire.NewMessageID()
	frames, err := c.codec.ChunkChat(mid, text, c.opts.Sender)
	if err != nil {
		return mapEncodeError(err)
	}

	if err := c.sendFrames(ctx, frames); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "SendMessage",
		"mid":      mid,
		"chunks":   len(frames),
	}).Debug("Chat message sent")
	return nil
}

// SendInterrupt tells the avatar to stop its current reply.
func (c *Client) SendInterrupt(ctx context.Context) error {
	frame, err := c.codec.EncodeCommand(wire.NewMessageID(), wire.CmdInterrupt, nil)
	if err != nil {
		return mapEncodeError(err)
	}
	return c.sendFrames(ctx, [][]byte{frame})
}

// AvatarParameters adjusts the avatar's voice and presentation. Zero
// valued fields are left unchanged on the remote side; Extra carries
// endpoint-specific settings and never overrides the named fields.
type AvatarParameters struct {
	VoiceID    string
	VoiceURL   string
	Language   string
	Background string
	Mode       int
	Extra      map[string]any
}

// data returns the wire field map with zero-valued fields filtered out.
func (p AvatarParameters) data() map[string]any {
	d := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		if v == nil {
			continue
		}
		d[k] = v
	}
	if p.VoiceID != "" {
		d["vid"] = p.VoiceID
	}
	if p.VoiceURL != "" {
		d["vurl"] = p.VoiceURL
	}
	if p.Language != "" {
		d["lang"] = p.Language
	}
	if p.Background != "" {
		d["bgurl"] = p.Background
	}
	if p.Mode != 0 {
		d["mode"] = p.Mode
	}
	return d
}

// SetAvatarParameters sends the changed avatar parameters as a
// set-params command. A filtered payload byte-identical to the
// previously sent one is suppressed so callers may invoke this on every
// render without flooding the channel.
func (c *Client) SetAvatarParameters(ctx context.Context, params AvatarParameters) error {
	return c.sendParameters(ctx, params, false)
}

// ForceAvatarParameters sends the avatar parameters even when identical
// to the previously sent payload.
func (c *Client) ForceAvatarParameters(ctx context.Context, params AvatarParameters) error {
	return c.sendParameters(ctx, params, true)
}

func (c *Client) sendParameters(ctx context.Context, params AvatarParameters, force bool) error {
	data := params.data()
	if len(data) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "sendParameters",
		}).Debug("All avatar parameters empty, nothing to send")
		return nil
	}

	// json.Marshal sorts map keys, so equal parameter sets always
	// encode to equal bytes.
	encoded, err := json.Marshal(data)
	if err != nil {
		return mapEncodeError(err)
	}

	c.paramsMu.Lock()
	if !force && bytes.Equal(encoded, c.lastParams) {
		c.paramsMu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "sendParameters",
		}).Debug("Avatar parameters unchanged, send suppressed")
		return nil
	}
	c.paramsMu.Unlock()

	frame, err := c.codec.EncodeCommand(wire.NewMessageID(), wire.CmdSetParams, data)
	if err != nil {
		return mapEncodeError(err)
	}
	if err := c.sendFrames(ctx, [][]byte{frame}); err != nil {
		return err
	}

	c.paramsMu.Lock()
	c.lastParams = encoded
	c.paramsMu.Unlock()
	return nil
}

// sendFrames ships frames in order, sleeping between them so the send
// stays inside the outbound byte budget. The delay after the final
// frame is skipped.
func (c *Client) sendFrames(ctx context.Context, frames [][]byte) error {
	for i, frame := range frames {
		start := time.Now()
		if err := c.transport.SendRaw(ctx, frame); err != nil {
			return fmt.Errorf("%w: chunk %d of %d: %v", ErrMessageSendFailed, i+1, len(frames), err)
		}
		if i == len(frames)-1 {
			break
		}
		if delay := c.pacer.Delay(len(frame), time.Since(start)); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %v", ErrMessageSendFailed, ctx.Err())
			case <-timer.C:
			}
		}
	}
	return nil
}
