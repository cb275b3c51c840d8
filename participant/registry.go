package participant

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/quality"
)

// Registry is a thread-safe collection of session participants. Join and
// leave operations are idempotent so transports may replay lifecycle
// callbacks without corrupting state. Track operations never create or
// remove participants.
type Registry struct {
	mu           sync.RWMutex
	members      map[string]*Participant
	order        []string // join order, excluding the local participant
	localID      string
	timeProvider TimeProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return NewRegistryWithTimeProvider(defaultTimeProvider)
}

// NewRegistryWithTimeProvider creates an empty registry with a custom time
// source for deterministic testing.
func NewRegistryWithTimeProvider(tp TimeProvider) *Registry {
	if tp == nil {
		tp = defaultTimeProvider
	}
	return &Registry{
		members:      make(map[string]*Participant),
		timeProvider: tp,
	}
}

// Add inserts a remote participant. Re-adding an existing id refreshes the
// display name and keeps tracks and join order intact.
func (r *Registry) Add(p Participant) {
	if p.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.members[p.ID]; ok {
		if p.DisplayName != "" {
			existing.DisplayName = p.DisplayName
		}
		logrus.WithFields(logrus.Fields{
			"function":       "Add",
			"participant_id": p.ID,
		}).Debug("Participant already present, refreshed")
		return
	}

	p.IsLocal = false
	p.JoinedAt = r.timeProvider.Now()
	cp := p.clone()
	r.members[p.ID] = &cp
	r.order = append(r.order, p.ID)

	logrus.WithFields(logrus.Fields{
		"function":       "Add",
		"participant_id": p.ID,
		"display_name":   p.DisplayName,
		"total":          len(r.members),
	}).Info("Participant joined")
}

// SetLocal inserts or replaces the local participant.
func (r *Registry) SetLocal(p Participant) {
	if p.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.localID != "" && r.localID != p.ID {
		delete(r.members, r.localID)
	}
	p.IsLocal = true
	if existing, ok := r.members[p.ID]; ok {
		existing.IsLocal = true
		if p.DisplayName != "" {
			existing.DisplayName = p.DisplayName
		}
	} else {
		p.JoinedAt = r.timeProvider.Now()
		cp := p.clone()
		r.members[p.ID] = &cp
	}
	r.localID = p.ID

	logrus.WithFields(logrus.Fields{
		"function":       "SetLocal",
		"participant_id": p.ID,
	}).Debug("Local participant set")
}

// Remove deletes a participant. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.localID == id {
		r.localID = ""
	}

	logrus.WithFields(logrus.Fields{
		"function":       "Remove",
		"participant_id": id,
		"total":          len(r.members),
	}).Info("Participant left")
	return true
}

// Get returns a copy of the participant with the given id.
func (r *Registry) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.members[id]
	if !ok {
		return Participant{}, false
	}
	return p.clone(), true
}

// Local returns a copy of the local participant.
func (r *Registry) Local() (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.localID == "" {
		return Participant{}, false
	}
	p, ok := r.members[r.localID]
	if !ok {
		return Participant{}, false
	}
	return p.clone(), true
}

// All returns copies of every participant, local first, then remotes in
// join order.
func (r *Registry) All() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Participant, 0, len(r.members))
	if r.localID != "" {
		if p, ok := r.members[r.localID]; ok {
			out = append(out, p.clone())
		}
	}
	for _, id := range r.order {
		if id == r.localID {
			continue
		}
		if p, ok := r.members[id]; ok {
			out = append(out, p.clone())
		}
	}
	return out
}

// Update applies fn to the participant with the given id under the write
// lock. Unknown ids are a no-op.
func (r *Registry) Update(id string, fn func(*Participant)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// UpsertTrack adds or replaces a track on an existing participant. It never
// creates the participant.
func (r *Registry) UpsertTrack(participantID string, t Track) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[participantID]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":       "UpsertTrack",
			"participant_id": participantID,
			"track_id":       t.ID,
		}).Debug("Track for unknown participant dropped")
		return false
	}
	for i := range p.Tracks {
		if p.Tracks[i].ID == t.ID {
			p.Tracks[i] = t
			return true
		}
	}
	p.Tracks = append(p.Tracks, t)

	logrus.WithFields(logrus.Fields{
		"function":       "UpsertTrack",
		"participant_id": participantID,
		"track_id":       t.ID,
		"kind":           t.Kind.String(),
	}).Debug("Track published")
	return true
}

// RemoveTrack removes a track from an existing participant. It never
// removes the participant.
func (r *Registry) RemoveTrack(participantID, trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[participantID]
	if !ok {
		return false
	}
	for i := range p.Tracks {
		if p.Tracks[i].ID == trackID {
			p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

// SetQuality records the latest normalized quality for a participant.
func (r *Registry) SetQuality(id string, q *quality.ConnectionQuality) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[id]
	if !ok {
		return false
	}
	if q == nil {
		p.Quality = nil
		return true
	}
	cq := *q
	p.Quality = &cq
	return true
}

// Len returns the number of participants, local included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Clear removes every participant.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[string]*Participant)
	r.order = nil
	r.localID = ""

	logrus.WithFields(logrus.Fields{
		"function": "Clear",
	}).Debug("Registry cleared")
}
