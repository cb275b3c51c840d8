package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/avatarstream/client-sdk-go/quality"
)

// MockTransport is an in-memory Transport for tests. Outbound frames
// are captured, inbound traffic is injected through the Inject helpers,
// and failure modes are scripted through the error fields.
type MockTransport struct {
	// ConnectErr, SendErr and PublishErr make the corresponding calls
	// fail when non-nil.
	ConnectErr error
	SendErr    error
	PublishErr error

	mu        sync.Mutex
	events    *Events
	connected bool
	ready     bool
	local     ParticipantInfo
	sent      [][]byte
	tracks    map[string]*LocalTrack
	sample    quality.Sample
	nextTrack int
}

// NewMockTransport returns a disconnected mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Name returns the provider identifier.
func (m *MockTransport) Name() string { return "mock" }

// Bind installs the upward callbacks.
func (m *MockTransport) Bind(ev *Events) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = ev
}

// Connect marks the mock connected. The local identity comes from the
// "uid" credential when present.
func (m *MockTransport) Connect(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	m.ready = true
	m.tracks = make(map[string]*LocalTrack)
	m.local = ParticipantInfo{ID: creds.Get(CredClientID)}
	if m.local.ID == "" {
		m.local.ID = "local-user"
	}
	return nil
}

// Disconnect marks the mock disconnected. Safe to call repeatedly.
func (m *MockTransport) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.ready = false
	m.tracks = nil
	m.local = ParticipantInfo{}
	return nil
}

// IsReady reports the scripted readiness.
func (m *MockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.ready
}

// SetReady overrides readiness without touching the connected flag.
func (m *MockTransport) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// SendRaw captures one outbound frame.
func (m *MockTransport) SendRaw(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if !m.ready {
		return ErrNotReady
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	m.sent = append(m.sent, frame)
	return nil
}

// Sent returns copies of every frame captured so far.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, frame := range m.sent {
		cp := make([]byte, len(frame))
		copy(cp, frame)
		out[i] = cp
	}
	return out
}

// ClearSent drops the captured frames.
func (m *MockTransport) ClearSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// SetSample scripts the value SampleQuality returns.
func (m *MockTransport) SetSample(s quality.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sample = s
}

// SampleQuality returns the scripted sample.
func (m *MockTransport) SampleQuality() quality.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sample
}

// LocalParticipant reports the mock identity once connected.
func (m *MockTransport) LocalParticipant() (ParticipantInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ParticipantInfo{}, false
	}
	return m.local, true
}

// PublishTrack records the track and assigns a deterministic id.
func (m *MockTransport) PublishTrack(ctx context.Context, track *LocalTrack) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", ErrNotConnected
	}
	if m.PublishErr != nil {
		return "", m.PublishErr
	}
	m.nextTrack++
	id := fmt.Sprintf("mock-track-%d", m.nextTrack)
	m.tracks[id] = track
	return id, nil
}

// UnpublishTrack removes a previously published track.
func (m *MockTransport) UnpublishTrack(ctx context.Context, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if _, ok := m.tracks[trackID]; !ok {
		return fmt.Errorf("%w: %q", ErrTrackNotFound, trackID)
	}
	delete(m.tracks, trackID)
	return nil
}

// PublishedTracks returns the ids currently held by the mock.
func (m *MockTransport) PublishedTracks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tracks))
	for id := range m.tracks {
		ids = append(ids, id)
	}
	return ids
}

func (m *MockTransport) bound() *Events {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// InjectRaw delivers one inbound frame.
func (m *MockTransport) InjectRaw(data []byte) {
	m.bound().emitRawMessage(data)
}

// InjectParticipantJoined announces a remote participant.
func (m *MockTransport) InjectParticipantJoined(info ParticipantInfo) {
	m.bound().emitParticipantJoined(info)
}

// InjectParticipantLeft removes a remote participant.
func (m *MockTransport) InjectParticipantLeft(id string) {
	m.bound().emitParticipantLeft(id)
}

// InjectTrackPublished announces a remote track.
func (m *MockTransport) InjectTrackPublished(participantID string, track TrackInfo) {
	m.bound().emitTrackPublished(participantID, track)
}

// InjectTrackUnpublished removes a remote track.
func (m *MockTransport) InjectTrackUnpublished(participantID, trackID string) {
	m.bound().emitTrackUnpublished(participantID, trackID)
}

// InjectQuality pushes a transport-native quality sample.
func (m *MockTransport) InjectQuality(sample quality.Sample) {
	m.bound().emitQuality(sample)
}

// InjectConnectionLost simulates a dropped link entering recovery.
func (m *MockTransport) InjectConnectionLost(err error) {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
	m.bound().emitConnectionLost(err)
}

// InjectReconnected simulates a successful recovery.
func (m *MockTransport) InjectReconnected() {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	m.bound().emitReconnected()
}

// InjectDisconnected simulates a terminal connection loss.
func (m *MockTransport) InjectDisconnected(err error) {
	m.mu.Lock()
	m.connected = false
	m.ready = false
	m.mu.Unlock()
	m.bound().emitDisconnected(err)
}
