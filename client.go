package avatarstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/participant"
	"github.com/avatarstream/client-sdk-go/quality"
	"github.com/avatarstream/client-sdk-go/transport"
	"github.com/avatarstream/client-sdk-go/wire"
)

// Client is the session facade. It owns the connection state machine,
// the participant registry and the messaging pipeline, and presents one
// uniform surface regardless of the active transport.
//
// All methods are safe for concurrent use. State mutations notify
// subscribers synchronously before the mutating call returns.
type Client struct {
	opts *Options
	cfg  transport.Config

	transport transport.Transport
	events    *transport.Events
	codec     *wire.Codec
	pacer     *wire.Pacer
	assembler *wire.Assembler
	registry  *participant.Registry

	mu          sync.Mutex
	state       ConnectionState
	speaking    bool
	netQuality  *quality.ConnectionQuality
	lastErr     error
	handlers    *Handlers
	stopQuality chan struct{}
	audioTrack  string
	videoTrack  string

	paramsMu   sync.Mutex
	lastParams []byte

	subMu  sync.Mutex
	subs   map[uint64]func(StreamingState)
	subSeq uint64
}

// New creates a Client from the given options. A nil opts uses the
// defaults. The transport adapter is constructed here; the session is
// not established until Connect.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = NewOptions()
	}

	cfg := opts.Config.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	codec, err := wire.NewCodec(cfg.MaxEncodedBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	pacer, err := wire.NewPacer(cfg.SendBytesPerSecond)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	tr := opts.Transport
	if tr == nil {
		tr, err = transport.New(opts.Provider, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}

	c := &Client{
		opts:      opts,
		cfg:       cfg,
		transport: tr,
		codec:     codec,
		pacer:     pacer,
		assembler: wire.NewAssembler(opts.AssemblyTTL),
		registry:  participant.NewRegistry(),
		subs:      make(map[uint64]func(StreamingState)),
	}
	c.events = c.transportEvents()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"provider": tr.Name(),
	}).Debug("Client created")
	return c, nil
}

// Provider returns the name of the transport adapter in use.
func (c *Client) Provider() string {
	return c.transport.Name()
}

// Connect establishes the session and begins forwarding transport and
// codec events to handlers. It is valid only from the Disconnected and
// Failed states; a failed attempt leaves the client in Failed, from
// which Connect may be called again.
func (c *Client) Connect(ctx context.Context, creds transport.Credentials, handlers *Handlers) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateFailed:
	default:
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: connect is not valid while %s", ErrConnectionFailed, st)
	}
	c.state = StateConnecting
	c.lastErr = nil
	c.speaking = false
	c.handlers = handlers
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.paramsMu.Lock()
	c.lastParams = nil
	c.paramsMu.Unlock()

	c.fanOut(snap)
	c.transport.Bind(c.events)

	if err := c.transport.Connect(ctx, creds); err != nil {
		mapped := mapConnectError(err)
		c.updateState(func() {
			c.state = StateFailed
			c.lastErr = mapped
		})
		logrus.WithFields(logrus.Fields{
			"function": "Connect",
			"provider": c.transport.Name(),
			"error":    err,
		}).Error("Session connect failed")
		return mapped
	}

	c.mu.Lock()
	c.state = StateConnected
	c.stopQuality = make(chan struct{})
	go c.qualityLoop(c.stopQuality)
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"provider": c.transport.Name(),
	}).Info("Session connected")
	return nil
}

// Disconnect tears the session down. It never fails: transport errors
// are logged, local state always ends Disconnected and IsSpeaking is
// forced false. Safe to call repeatedly and before any Connect.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.stopQualityLoop()

	if err := c.transport.Disconnect(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Disconnect",
			"provider": c.transport.Name(),
			"error":    err,
		}).Warn("Transport disconnect failed, resetting state anyway")
	}

	c.updateState(func() {
		c.state = StateDisconnected
		c.speaking = false
		c.netQuality = nil
		c.lastErr = nil
		c.audioTrack = ""
		c.videoTrack = ""
		c.registry.Clear()
	})

	logrus.WithFields(logrus.Fields{
		"function": "Disconnect",
	}).Info("Session disconnected")
	return nil
}

// State returns the current StreamingState snapshot.
func (c *Client) State() StreamingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive every StreamingState snapshot from
// now on. The returned function removes exactly this subscriber and may
// be called more than once.
func (c *Client) Subscribe(fn func(StreamingState)) func() {
	c.subMu.Lock()
	c.subSeq++
	id := c.subSeq
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// updateState runs mutate under the state lock and notifies subscribers
// with the resulting snapshot before returning.
func (c *Client) updateState(mutate func()) {
	c.mu.Lock()
	mutate()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.fanOut(snap)
}

func (c *Client) snapshotLocked() StreamingState {
	snap := StreamingState{
		State:        c.state,
		IsJoined:     c.state == StateConnected || c.state == StateReconnecting,
		IsConnecting: c.state == StateConnecting,
		IsSpeaking:   c.speaking,
		Participants: c.registry.All(),
		Err:          c.lastErr,
	}
	if p, ok := c.registry.Local(); ok {
		snap.LocalParticipant = &p
	}
	if c.netQuality != nil {
		q := *c.netQuality
		snap.NetworkQuality = &q
	}
	return snap
}

func (c *Client) fanOut(snap StreamingState) {
	c.subMu.Lock()
	fns := make([]func(StreamingState), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		c.invokeSubscriber(fn, snap)
	}
}

// invokeSubscriber isolates a panicking subscriber so the remaining
// subscribers still see the snapshot.
func (c *Client) invokeSubscriber(fn func(StreamingState), snap StreamingState) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "invokeSubscriber",
				"panic":    r,
			}).Error("State subscriber panicked")
		}
	}()
	fn(snap)
}

func (c *Client) currentHandlers() *Handlers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers
}

// qualityLoop polls the adapter for native quality samples on the
// configured interval. Adapters that push samples through OnQuality
// feed the same normalization path.
func (c *Client) qualityLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.QualityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if sample := c.transport.SampleQuality(); sample != nil {
				c.handleQualitySample(sample)
			}
		}
	}
}

func (c *Client) stopQualityLoop() {
	c.mu.Lock()
	if c.stopQuality != nil {
		close(c.stopQuality)
		c.stopQuality = nil
	}
	c.mu.Unlock()
}
