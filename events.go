package avatarstream

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/participant"
	"github.com/avatarstream/client-sdk-go/quality"
	"github.com/avatarstream/client-sdk-go/transport"
	"github.com/avatarstream/client-sdk-go/wire"
)

// transportEvents wires the adapter callbacks into the state machine,
// the registry and the reassembly pipeline. Adapters only emit events;
// every state mutation happens here.
func (c *Client) transportEvents() *transport.Events {
	return &transport.Events{
		OnRawMessage:        c.handleFrame,
		OnParticipantJoined: c.handleParticipantJoined,
		OnParticipantLeft:   c.handleParticipantLeft,
		OnTrackPublished:    c.handleTrackPublished,
		OnTrackUnpublished:  c.handleTrackUnpublished,
		OnQuality:           c.handleQualitySample,
		OnConnectionLost:    c.handleConnectionLost,
		OnReconnected:       c.handleReconnected,
		OnDisconnected:      c.handleDisconnected,
	}
}

// handleFrame feeds one inbound frame through reassembly and dispatches
// the completed message. Frames with a foreign protocol version are
// dropped silently so the wire format can evolve.
func (c *Client) handleFrame(data []byte) {
	msg, err := c.assembler.Ingest(data)
	if err != nil {
		if errors.Is(err, wire.ErrUnsupportedVersion) {
			logrus.WithFields(logrus.Fields{
				"function": "handleFrame",
			}).Debug("Dropped frame with foreign protocol version")
			return
		}
		logrus.WithFields(logrus.Fields{
			"function": "handleFrame",
			"error":    err,
		}).Warn("Dropped undecodable frame")
		return
	}
	if msg == nil {
		return
	}

	switch msg.Kind {
	case wire.KindChat:
		c.currentHandlers().emitChatMessage(ChatMessage{
			MID:  msg.MID,
			Text: msg.Chat.Text,
			From: msg.Chat.From,
		})
	case wire.KindEvent:
		c.handleRemoteEvent(msg.Event.Event)
	case wire.KindCommand:
		c.handleRemoteCommand(msg.Command)
	}
}

// handleRemoteEvent drives speaking state from the audio lifecycle
// events and surfaces every event as a system message.
func (c *Client) handleRemoteEvent(event string) {
	switch event {
	case wire.EventAudioStart:
		c.setSpeaking(true)
	case wire.EventAudioEnd:
		c.setSpeaking(false)
	}
	c.currentHandlers().emitSystemMessage(event)
}

// setSpeaking updates the speaking flag. Updates are ignored outside an
// established session so a stale event can never report a speaking
// avatar over a dead connection.
func (c *Client) setSpeaking(on bool) {
	c.mu.Lock()
	joined := c.state == StateConnected || c.state == StateReconnecting
	if !joined || c.speaking == on {
		c.mu.Unlock()
		return
	}
	c.speaking = on
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)
}

func (c *Client) handleRemoteCommand(cmd *wire.CommandPayload) {
	if cmd.IsAck() {
		if !cmd.Succeeded() {
			logrus.WithFields(logrus.Fields{
				"function": "handleRemoteCommand",
				"cmd":      cmd.Cmd,
				"code":     *cmd.Code,
				"msg":      cmd.Msg,
			}).Warn("Command rejected by remote endpoint")
		}
		c.currentHandlers().emitCommandAck(cmd.Cmd, *cmd.Code, cmd.Msg)
		return
	}
	c.currentHandlers().emitCommand(cmd.Cmd, cmd.Data)
}

func (c *Client) handleParticipantJoined(info transport.ParticipantInfo) {
	c.updateState(func() {
		c.registry.Add(participant.Participant{ID: info.ID, DisplayName: info.DisplayName})
	})
	if p, ok := c.registry.Get(info.ID); ok {
		c.currentHandlers().emitParticipantJoined(p)
	}
}

func (c *Client) handleParticipantLeft(id string) {
	c.updateState(func() {
		c.registry.Remove(id)
	})
	c.currentHandlers().emitParticipantLeft(id)
}

func (c *Client) handleTrackPublished(participantID string, info transport.TrackInfo) {
	track := participant.Track{
		ID:      info.ID,
		Kind:    mapTrackKind(info.Kind),
		Source:  info.Source,
		Muted:   info.Muted,
		Enabled: true,
	}
	c.updateState(func() {
		c.registry.UpsertTrack(participantID, track)
	})
	c.currentHandlers().emitTrackPublished(participantID, track)
}

func (c *Client) handleTrackUnpublished(participantID, trackID string) {
	c.updateState(func() {
		c.registry.RemoveTrack(participantID, trackID)
	})
	c.currentHandlers().emitTrackUnpublished(participantID, trackID)
}

// handleQualitySample normalizes one native sample and publishes it
// through the state snapshot and the typed handler. Samples arriving
// outside an established session are dropped so a late polling tick
// cannot resurrect quality on a closed session.
func (c *Client) handleQualitySample(sample quality.Sample) {
	q := quality.Normalize(sample)
	if q == nil {
		return
	}

	c.mu.Lock()
	if c.state != StateConnected && c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.netQuality = q
	if p, ok := c.registry.Local(); ok {
		c.registry.SetQuality(p.ID, q)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)

	c.currentHandlers().emitNetworkQuality(*q)
}

// handleConnectionLost moves an established session into Reconnecting.
// Participants are retained; the transport recovers the link on its
// own.
func (c *Client) handleConnectionLost(err error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.lastErr = mapLostError(err)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)

	logrus.WithFields(logrus.Fields{
		"function": "handleConnectionLost",
		"error":    err,
	}).Warn("Connection lost, transport recovering")
}

func (c *Client) handleReconnected() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.lastErr = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)

	logrus.WithFields(logrus.Fields{
		"function": "handleReconnected",
	}).Info("Connection restored")
}

// handleDisconnected processes a terminal transport disconnect. Unlike
// Disconnect it keeps the failure visible to subscribers through Err.
func (c *Client) handleDisconnected(err error) {
	c.stopQualityLoop()

	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.speaking = false
	c.netQuality = nil
	c.audioTrack = ""
	c.videoTrack = ""
	c.lastErr = mapLostError(err)
	c.registry.Clear()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)

	logrus.WithFields(logrus.Fields{
		"function": "handleDisconnected",
		"error":    err,
	}).Warn("Session ended by transport")
}

// mapTrackKind converts the adapter's track kind to the registry's.
func mapTrackKind(k transport.TrackKind) participant.TrackKind {
	if k == transport.TrackKindVideo {
		return participant.TrackVideo
	}
	return participant.TrackAudio
}
