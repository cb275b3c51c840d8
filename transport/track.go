package transport

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// LocalTrack is a provider-independent local media track backed by a
// static RTP track. The caller feeds RTP packets; adapters hand the
// underlying track to their provider when publishing.
type LocalTrack struct {
	kind  TrackKind
	name  string
	track *webrtc.TrackLocalStaticRTP
}

// NewAudioTrack creates an Opus audio track.
func NewAudioTrack(name string) (*LocalTrack, error) {
	return newRTPTrack(TrackKindAudio, name, webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	})
}

// NewVideoTrack creates a VP8 video track.
func NewVideoTrack(name string) (*LocalTrack, error) {
	return newRTPTrack(TrackKindVideo, name, webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	})
}

func newRTPTrack(kind TrackKind, name string, codec webrtc.RTPCodecCapability) (*LocalTrack, error) {
	if name == "" {
		name = kind.String()
	}
	t, err := webrtc.NewTrackLocalStaticRTP(codec, name+"-"+uuid.NewString()[:8], "avatarstream")
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}
	return &LocalTrack{kind: kind, name: name, track: t}, nil
}

// Kind returns whether the track carries audio or video.
func (t *LocalTrack) Kind() TrackKind { return t.kind }

// Name returns the caller-chosen track name.
func (t *LocalTrack) Name() string { return t.name }

// ID returns the track identifier adapters publish under.
func (t *LocalTrack) ID() string { return t.track.ID() }

// WriteRTP forwards one RTP packet into the track.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	return t.track.WriteRTP(p)
}

func (t *LocalTrack) pion() webrtc.TrackLocal { return t.track }
