package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/quality"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxGatewayMessage = 32 * 1024

	reconnectAttempts = 5
	reconnectBase     = 500 * time.Millisecond
	reconnectMax      = 8 * time.Second
)

// Gateway control operations.
const (
	opJoin      = "join"
	opJoined    = "joined"
	opPeerJoin  = "peer-join"
	opPeerLeave = "peer-leave"
	opTrack     = "track"
	opQuality   = "quality"
	opData      = "data"
	opLeave     = "leave"
	opError     = "error"
)

// gatewayMessage is the JSON control frame spoken with the gateway. Data
// frames wrap the session envelope untouched in Body.
type gatewayMessage struct {
	Op      string          `json:"op"`
	Channel string          `json:"channel,omitempty"`
	UID     string          `json:"uid,omitempty"`
	Token   string          `json:"token,omitempty"`
	Self    *gatewayPeer    `json:"self,omitempty"`
	Peers   []gatewayPeer   `json:"peers,omitempty"`
	Peer    *gatewayPeer    `json:"peer,omitempty"`
	Track   *gatewayTrack   `json:"track,omitempty"`
	From    string          `json:"from,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	Up      *int            `json:"up,omitempty"`
	Down    *int            `json:"down,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

type gatewayPeer struct {
	UID  string `json:"uid"`
	Name string `json:"name,omitempty"`
}

type gatewayTrack struct {
	UID     string `json:"uid"`
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Source  string `json:"source,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// SignalTransport drives a session over a websocket signal gateway. The
// gateway relays envelopes between channel members and pushes roster,
// track and quality updates. Requires the "gateway_url", "token",
// "channel" and "uid" credentials. Media publishing is not available on
// this provider.
type SignalTransport struct {
	cfg    Config
	events *Events

	mu      sync.Mutex
	ws      *websocket.Conn
	joined  bool
	closing bool
	gen     int
	stop    chan struct{}

	gatewayURL string
	token      string
	channel    string
	uid        string
	self       ParticipantInfo
	roster     map[string]struct{}

	// wmu serializes data writes; control frames go through
	// WriteControl which gorilla allows concurrently.
	wmu sync.Mutex

	qmu      sync.Mutex
	lastUp   int
	lastDown int
	haveQ    bool
	lastRTT  time.Duration
}

// NewSignalTransport returns a disconnected gateway adapter.
func NewSignalTransport(cfg Config) *SignalTransport {
	return &SignalTransport{cfg: cfg}
}

// Name returns the provider identifier.
func (t *SignalTransport) Name() string { return ProviderSignal }

// Bind installs the upward callbacks.
func (t *SignalTransport) Bind(ev *Events) { t.events = ev }

// Connect dials the gateway, joins the channel and starts the read and
// ping loops. The joined reply's roster is replayed through the bound
// callbacks.
func (t *SignalTransport) Connect(ctx context.Context, creds Credentials) error {
	gatewayURL, err := creds.Require(CredGatewayURL)
	if err != nil {
		return err
	}
	token, err := creds.Require(CredAccessToken)
	if err != nil {
		return err
	}
	channel, err := creds.Require(CredChannel)
	if err != nil {
		return err
	}
	uid, err := creds.Require(CredClientID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.ws != nil {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.gatewayURL, t.token, t.channel, t.uid = gatewayURL, token, channel, uid
	t.closing = false
	t.mu.Unlock()

	ws, self, peers, err := t.dialAndJoin(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.ws = ws
	t.joined = true
	t.self = ParticipantInfo{ID: self.UID, DisplayName: self.Name}
	t.roster = make(map[string]struct{})
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.readPump(ws, gen)
	go t.pinger(ws, stop)
	t.syncRoster(peers)

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"provider": ProviderSignal,
		"channel":  channel,
		"uid":      uid,
	}).Info("Joined gateway channel")
	return nil
}

// Disconnect leaves the channel and closes the socket. Safe to call
// repeatedly.
func (t *SignalTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	ws := t.ws
	stop := t.stop
	t.closing = true
	t.ws = nil
	t.joined = false
	t.stop = nil
	t.self = ParticipantInfo{}
	t.roster = nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if ws == nil {
		return nil
	}

	t.wmu.Lock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	ws.WriteJSON(gatewayMessage{Op: opLeave})
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	t.wmu.Unlock()
	_ = ws.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Disconnect",
		"provider": ProviderSignal,
	}).Info("Left gateway channel")
	return nil
}

// IsReady reports whether the channel join is live right now.
func (t *SignalTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ws != nil && t.joined
}

// SendRaw wraps one frame in a data operation and writes it out.
func (t *SignalTransport) SendRaw(ctx context.Context, data []byte) error {
	t.mu.Lock()
	ws, joined := t.ws, t.joined
	t.mu.Unlock()

	if ws == nil {
		return ErrNotConnected
	}
	if !joined {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := json.Marshal(gatewayMessage{Op: opData, Body: data})
	if err != nil {
		return fmt.Errorf("wrap frame: %w", err)
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("gateway write: %w", err)
	}
	return nil
}

// SampleQuality returns the latest gateway quality report merged with
// the measured ping round trip, or nil before the first report.
func (t *SignalTransport) SampleQuality() quality.Sample {
	t.qmu.Lock()
	defer t.qmu.Unlock()
	if !t.haveQ {
		return nil
	}
	return quality.SignalSample{Uplink: t.lastUp, Downlink: t.lastDown, RTT: t.lastRTT}
}

// LocalParticipant reports the identity confirmed by the gateway.
func (t *SignalTransport) LocalParticipant() (ParticipantInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ws == nil {
		return ParticipantInfo{}, false
	}
	return t.self, true
}

// PublishTrack always fails: signal gateways relay data only.
func (t *SignalTransport) PublishTrack(ctx context.Context, track *LocalTrack) (string, error) {
	return "", fmt.Errorf("%w: signal gateway carries no media", ErrNotSupported)
}

// UnpublishTrack always fails: signal gateways relay data only.
func (t *SignalTransport) UnpublishTrack(ctx context.Context, trackID string) error {
	return fmt.Errorf("%w: signal gateway carries no media", ErrNotSupported)
}

// dialAndJoin performs the websocket handshake and the channel join,
// returning the accepted connection together with the gateway's view of
// this client and the current roster.
func (t *SignalTransport) dialAndJoin(ctx context.Context) (*websocket.Conn, gatewayPeer, []gatewayPeer, error) {
	t.mu.Lock()
	gatewayURL, token, channel, uid := t.gatewayURL, t.token, t.channel, t.uid
	t.mu.Unlock()

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.ConnectTimeout}
	ws, resp, err := dialer.DialContext(ctx, gatewayURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, gatewayPeer{}, nil, fmt.Errorf("%w: gateway returned %d", ErrAuthRejected, resp.StatusCode)
		}
		return nil, gatewayPeer{}, nil, fmt.Errorf("dial gateway: %w", err)
	}

	join := gatewayMessage{Op: opJoin, Channel: channel, UID: uid, Token: token}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(join); err != nil {
		_ = ws.Close()
		return nil, gatewayPeer{}, nil, fmt.Errorf("send join: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(t.cfg.ConnectTimeout))
	var reply gatewayMessage
	if err := ws.ReadJSON(&reply); err != nil {
		_ = ws.Close()
		return nil, gatewayPeer{}, nil, fmt.Errorf("read join reply: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})

	switch reply.Op {
	case opJoined:
	case opError:
		_ = ws.Close()
		return nil, gatewayPeer{}, nil, fmt.Errorf("%w: %s", ErrAuthRejected, reply.Reason)
	default:
		_ = ws.Close()
		return nil, gatewayPeer{}, nil, fmt.Errorf("unexpected join reply %q", reply.Op)
	}

	self := gatewayPeer{UID: uid}
	if reply.Self != nil {
		self = *reply.Self
	}
	return ws, self, reply.Peers, nil
}

func (t *SignalTransport) readPump(ws *websocket.Conn, gen int) {
	defer ws.Close()

	ws.SetReadLimit(maxGatewayMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(appData string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		t.recordPong(appData)
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"function": "readPump",
					"provider": ProviderSignal,
					"error":    err,
				}).Warn("Gateway read failed")
			}
			t.handleReadExit(gen)
			return
		}
		t.handleGatewayMessage(data)
	}
}

func (t *SignalTransport) pinger(ws *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			payload := strconv.FormatInt(time.Now().UnixNano(), 10)
			if err := ws.WriteControl(websocket.PingMessage, []byte(payload), time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// recordPong turns an echoed ping payload into a round trip measurement.
func (t *SignalTransport) recordPong(appData string) {
	sentNanos, err := strconv.ParseInt(appData, 10, 64)
	if err != nil {
		return
	}
	rtt := time.Since(time.Unix(0, sentNanos))
	if rtt < 0 {
		return
	}
	t.qmu.Lock()
	t.lastRTT = rtt
	t.qmu.Unlock()
}

func (t *SignalTransport) handleGatewayMessage(data []byte) {
	var msg gatewayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleGatewayMessage",
			"provider": ProviderSignal,
		}).Debug("Dropping malformed gateway message")
		return
	}

	switch msg.Op {
	case opData:
		if len(msg.Body) > 0 {
			t.events.emitRawMessage(msg.Body)
		}
	case opPeerJoin:
		if msg.Peer == nil {
			return
		}
		t.mu.Lock()
		if t.roster != nil {
			t.roster[msg.Peer.UID] = struct{}{}
		}
		t.mu.Unlock()
		t.events.emitParticipantJoined(ParticipantInfo{ID: msg.Peer.UID, DisplayName: msg.Peer.Name})
	case opPeerLeave:
		if msg.UID == "" {
			return
		}
		t.mu.Lock()
		delete(t.roster, msg.UID)
		t.mu.Unlock()
		t.events.emitParticipantLeft(msg.UID)
	case opTrack:
		if msg.Track == nil {
			return
		}
		if msg.Track.Removed {
			t.events.emitTrackUnpublished(msg.Track.UID, msg.Track.ID)
			return
		}
		kind := TrackKindAudio
		if msg.Track.Kind == "video" {
			kind = TrackKindVideo
		}
		t.events.emitTrackPublished(msg.Track.UID, TrackInfo{
			ID:     msg.Track.ID,
			Kind:   kind,
			Source: msg.Track.Source,
			Muted:  msg.Track.Muted,
		})
	case opQuality:
		if msg.Up == nil || msg.Down == nil {
			return
		}
		t.qmu.Lock()
		t.lastUp, t.lastDown, t.haveQ = *msg.Up, *msg.Down, true
		sample := quality.SignalSample{Uplink: t.lastUp, Downlink: t.lastDown, RTT: t.lastRTT}
		t.qmu.Unlock()
		t.events.emitQuality(sample)
	case opError:
		logrus.WithFields(logrus.Fields{
			"function": "handleGatewayMessage",
			"provider": ProviderSignal,
			"reason":   msg.Reason,
		}).Warn("Gateway reported an error")
	case opJoined:
		// Only expected during the join handshake.
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handleGatewayMessage",
			"provider": ProviderSignal,
			"op":       msg.Op,
		}).Debug("Ignoring unknown gateway operation")
	}
}

// handleReadExit runs after the read loop dies. Unless the close was
// local it tries to dial back in with exponential backoff and either
// restores the session or reports it gone.
func (t *SignalTransport) handleReadExit(gen int) {
	t.mu.Lock()
	if t.closing || gen != t.gen || t.ws == nil {
		t.mu.Unlock()
		return
	}
	t.joined = false
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	t.events.emitConnectionLost(ErrConnectionInterrupted)

	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		delay := reconnectBase << (attempt - 1)
		if delay > reconnectMax {
			delay = reconnectMax
		}
		time.Sleep(delay)

		t.mu.Lock()
		if t.closing {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
		ws, self, peers, err := t.dialAndJoin(ctx)
		cancel()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "handleReadExit",
				"provider": ProviderSignal,
				"attempt":  attempt,
				"error":    err,
			}).Warn("Gateway reconnect attempt failed")
			continue
		}

		t.mu.Lock()
		if t.closing {
			t.mu.Unlock()
			_ = ws.Close()
			return
		}
		t.gen++
		newGen := t.gen
		t.ws = ws
		t.joined = true
		t.self = ParticipantInfo{ID: self.UID, DisplayName: self.Name}
		stop := make(chan struct{})
		t.stop = stop
		t.mu.Unlock()

		go t.readPump(ws, newGen)
		go t.pinger(ws, stop)
		t.events.emitReconnected()
		t.syncRoster(peers)

		logrus.WithFields(logrus.Fields{
			"function": "handleReadExit",
			"provider": ProviderSignal,
			"attempt":  attempt,
		}).Info("Gateway connection restored")
		return
	}

	t.mu.Lock()
	t.ws = nil
	t.mu.Unlock()
	t.events.emitDisconnected(fmt.Errorf("gateway reconnect failed after %d attempts", reconnectAttempts))
}

// syncRoster reconciles the gateway's channel roster with what was
// announced so far, emitting joins and leaves for the difference.
func (t *SignalTransport) syncRoster(peers []gatewayPeer) {
	current := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		current[p.UID] = struct{}{}
	}

	t.mu.Lock()
	var gone []string
	for uid := range t.roster {
		if _, ok := current[uid]; !ok {
			gone = append(gone, uid)
		}
	}
	var fresh []gatewayPeer
	for _, p := range peers {
		if _, ok := t.roster[p.UID]; !ok {
			fresh = append(fresh, p)
		}
	}
	t.roster = current
	t.mu.Unlock()

	for _, uid := range gone {
		t.events.emitParticipantLeft(uid)
	}
	for _, p := range fresh {
		t.events.emitParticipantJoined(ParticipantInfo{ID: p.UID, DisplayName: p.Name})
	}
}
