package avatarstream

import (
	"github.com/avatarstream/client-sdk-go/participant"
	"github.com/avatarstream/client-sdk-go/quality"
)

// ChatMessage is one complete conversational message after reassembly.
type ChatMessage struct {
	// MID is the logical message id shared by all of its chunks.
	MID string

	// Text is the full message body in original order.
	Text string

	// From tags the sender when the remote endpoint supplied one.
	From string
}

// Handlers carries the typed event callbacks a session forwards to the
// application. Nil members are skipped. Callbacks may fire from
// transport-owned goroutines, so implementations synchronize their own
// state.
type Handlers struct {
	// OnChatMessage delivers one reassembled chat message.
	OnChatMessage func(msg ChatMessage)

	// OnSystemMessage delivers a lifecycle event announced by the
	// remote endpoint, such as audio_start.
	OnSystemMessage func(event string)

	// OnCommand delivers a command invocation from the remote
	// endpoint.
	OnCommand func(cmd string, data map[string]any)

	// OnCommandAck delivers the acknowledgment of a previously sent
	// command. Code 1000 means the command was applied.
	OnCommandAck func(cmd string, code int, msg string)

	// OnParticipantJoined fires when a remote participant appears.
	OnParticipantJoined func(p participant.Participant)

	// OnParticipantLeft fires when a remote participant disappears.
	OnParticipantLeft func(id string)

	// OnTrackPublished fires when a remote track becomes available.
	OnTrackPublished func(participantID string, track participant.Track)

	// OnTrackUnpublished fires when a remote track goes away.
	OnTrackUnpublished func(participantID, trackID string)

	// OnNetworkQuality delivers every normalized quality observation.
	OnNetworkQuality func(q quality.ConnectionQuality)
}

func (h *Handlers) emitChatMessage(msg ChatMessage) {
	if h == nil || h.OnChatMessage == nil {
		return
	}
	h.OnChatMessage(msg)
}

func (h *Handlers) emitSystemMessage(event string) {
	if h == nil || h.OnSystemMessage == nil {
		return
	}
	h.OnSystemMessage(event)
}

func (h *Handlers) emitCommand(cmd string, data map[string]any) {
	if h == nil || h.OnCommand == nil {
		return
	}
	h.OnCommand(cmd, data)
}

func (h *Handlers) emitCommandAck(cmd string, code int, msg string) {
	if h == nil || h.OnCommandAck == nil {
		return
	}
	h.OnCommandAck(cmd, code, msg)
}

func (h *Handlers) emitParticipantJoined(p participant.Participant) {
	if h == nil || h.OnParticipantJoined == nil {
		return
	}
	h.OnParticipantJoined(p)
}

func (h *Handlers) emitParticipantLeft(id string) {
	if h == nil || h.OnParticipantLeft == nil {
		return
	}
	h.OnParticipantLeft(id)
}

func (h *Handlers) emitTrackPublished(participantID string, track participant.Track) {
	if h == nil || h.OnTrackPublished == nil {
		return
	}
	h.OnTrackPublished(participantID, track)
}

func (h *Handlers) emitTrackUnpublished(participantID, trackID string) {
	if h == nil || h.OnTrackUnpublished == nil {
		return
	}
	h.OnTrackUnpublished(participantID, trackID)
}

func (h *Handlers) emitNetworkQuality(q quality.ConnectionQuality) {
	if h == nil || h.OnNetworkQuality == nil {
		return
	}
	h.OnNetworkQuality(q)
}
