package wire

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultAssemblyTTL is how long a partially received message is retained
// before its chunks are discarded.
const DefaultAssemblyTTL = 30 * time.Second

// Message is a fully reassembled inbound message. Exactly one of Chat,
// Event or Command is set, matching Kind.
type Message struct {
	Kind    Kind
	MID     string
	Chat    *ChatPayload
	Event   *EventPayload
	Command *CommandPayload
}

type pendingMessage struct {
	parts    map[int]string
	from     string
	finIdx   int // -1 until the fin chunk arrives
	lastSeen time.Time
}

// Assembler reassembles chunked inbound frames into complete messages.
// Chunks may arrive out of order; duplicates are ignored; partial messages
// older than the TTL are evicted. Safe for concurrent use.
type Assembler struct {
	mu      sync.Mutex
	ttl     time.Duration
	time    TimeProvider
	pending map[string]*pendingMessage
}

// NewAssembler creates an Assembler with the given eviction TTL. A zero or
// negative TTL falls back to DefaultAssemblyTTL.
func NewAssembler(ttl time.Duration) *Assembler {
	return NewAssemblerWithTimeProvider(ttl, DefaultTimeProvider{})
}

// NewAssemblerWithTimeProvider creates an Assembler with a custom time
// source for deterministic testing.
func NewAssemblerWithTimeProvider(ttl time.Duration, tp TimeProvider) *Assembler {
	if ttl <= 0 {
		ttl = DefaultAssemblyTTL
	}
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	return &Assembler{
		ttl:     ttl,
		time:    tp,
		pending: make(map[string]*pendingMessage),
	}
}

// Ingest processes one raw frame. It returns a non-nil Message when the
// frame completes a logical message, (nil, nil) when the frame was consumed
// but the message is still incomplete or the frame was a duplicate, and an
// error for frames that cannot be processed. Callers should drop frames
// failing with ErrUnsupportedVersion without surfacing an error.
func (a *Assembler) Ingest(frame []byte) (*Message, error) {
	env, err := Decode(frame)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindEvent:
		p, err := env.Event()
		if err != nil {
			return nil, err
		}
		return &Message{Kind: KindEvent, MID: env.MID, Event: p}, nil
	case KindCommand:
		p, err := env.Command()
		if err != nil {
			return nil, err
		}
		return &Message{Kind: KindCommand, MID: env.MID, Command: p}, nil
	}

	p, err := env.Chat()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.time.Now()
	a.evictStale(now)

	// single-chunk fast path
	if env.Fin && env.Idx == 0 {
		delete(a.pending, env.MID)
		return &Message{Kind: KindChat, MID: env.MID, Chat: p}, nil
	}

	pm, ok := a.pending[env.MID]
	if !ok {
		pm = &pendingMessage{parts: make(map[int]string), finIdx: -1}
		a.pending[env.MID] = pm
	}
	pm.lastSeen = now

	if _, dup := pm.parts[env.Idx]; dup {
		logrus.WithFields(logrus.Fields{
			"function": "Ingest",
			"mid":      env.MID,
			"idx":      env.Idx,
		}).Debug("Duplicate chunk ignored")
		return nil, nil
	}
	if pm.finIdx >= 0 && env.Idx > pm.finIdx {
		logrus.WithFields(logrus.Fields{
			"function": "Ingest",
			"mid":      env.MID,
			"idx":      env.Idx,
			"fin_idx":  pm.finIdx,
		}).Debug("Chunk beyond final index ignored")
		return nil, nil
	}

	pm.parts[env.Idx] = p.Text
	if p.From != "" && pm.from == "" {
		pm.from = p.From
	}
	if env.Fin {
		pm.finIdx = env.Idx
	}

	if pm.finIdx < 0 || len(pm.parts) <= pm.finIdx {
		return nil, nil
	}
	for i := 0; i <= pm.finIdx; i++ {
		if _, ok := pm.parts[i]; !ok {
			return nil, nil
		}
	}

	var sb strings.Builder
	for i := 0; i <= pm.finIdx; i++ {
		sb.WriteString(pm.parts[i])
	}
	delete(a.pending, env.MID)

	logrus.WithFields(logrus.Fields{
		"function": "Ingest",
		"mid":      env.MID,
		"chunks":   pm.finIdx + 1,
		"bytes":    sb.Len(),
	}).Debug("Chunked message reassembled")

	return &Message{
		Kind: KindChat,
		MID:  env.MID,
		Chat: &ChatPayload{Text: sb.String(), From: pm.from},
	}, nil
}

// Sweep evicts partial messages older than the TTL and returns how many
// were removed. Ingest sweeps on its own; Sweep exists for callers that
// receive frames rarely.
func (a *Assembler) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.evictStale(a.time.Now())
}

// PendingCount returns the number of partially received messages.
func (a *Assembler) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Assembler) evictStale(now time.Time) int {
	evicted := 0
	for mid, pm := range a.pending {
		if now.Sub(pm.lastSeen) > a.ttl {
			delete(a.pending, mid)
			evicted++
			logrus.WithFields(logrus.Fields{
				"function": "evictStale",
				"mid":      mid,
				"chunks":   len(pm.parts),
				"age":      now.Sub(pm.lastSeen).String(),
			}).Debug("Evicted stale partial message")
		}
	}
	return evicted
}

// String implements fmt.Stringer for diagnostics.
func (m *Message) String() string {
	return fmt.Sprintf("wire.Message{kind=%s mid=%s}", m.Kind, m.MID)
}
