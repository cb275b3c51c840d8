// Package participant tracks the members of a streaming session and the
// media tracks they publish.
//
// The registry is the single source of truth the client facade snapshots
// from. All getters return copies; callers never observe later mutations
// through a returned value.
//
// Example:
//
//	r := participant.NewRegistry()
//	r.Add(participant.Participant{ID: "avatar-1", DisplayName: "Avatar"})
//	r.UpsertTrack("avatar-1", participant.Track{ID: "v1", Kind: participant.TrackVideo, Enabled: true})
package participant

import (
	"time"

	"github.com/avatarstream/client-sdk-go/quality"
)

// TrackKind distinguishes audio from video tracks.
type TrackKind uint8

const (
	TrackAudio TrackKind = iota
	TrackVideo
)

// String returns a human-readable representation of the track kind.
func (k TrackKind) String() string {
	switch k {
	case TrackAudio:
		return "audio"
	case TrackVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Track is one published media track.
type Track struct {
	ID      string
	Kind    TrackKind
	Source  string
	Enabled bool
	Muted   bool
	Volume  float64
}

// Participant is one member of the session.
type Participant struct {
	ID          string
	DisplayName string
	IsLocal     bool
	Tracks      []Track
	Quality     *quality.ConnectionQuality
	JoinedAt    time.Time
}

// AudioTracks returns the participant's audio tracks.
func (p *Participant) AudioTracks() []Track {
	return p.tracksOfKind(TrackAudio)
}

// VideoTracks returns the participant's video tracks.
func (p *Participant) VideoTracks() []Track {
	return p.tracksOfKind(TrackVideo)
}

func (p *Participant) tracksOfKind(kind TrackKind) []Track {
	var out []Track
	for _, t := range p.Tracks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// clone returns a deep copy safe to hand out of the registry.
func (p *Participant) clone() Participant {
	cp := *p
	if p.Tracks != nil {
		cp.Tracks = make([]Track, len(p.Tracks))
		copy(cp.Tracks, p.Tracks)
	}
	if p.Quality != nil {
		q := *p.Quality
		cp.Quality = &q
	}
	return cp
}
