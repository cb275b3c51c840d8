package quality

import (
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/pion/webrtc/v4"
)

// Sample is a transport-native quality report awaiting normalization.
// Exactly three shapes exist, one per transport family.
type Sample interface {
	isQualitySample()
}

// SignalSample is the ordinal report shape used by signal gateways:
// integers 0-6 per direction, higher is better. RTT is the measured
// ping round trip when the gateway connection provides one, zero when
// unmeasured.
type SignalSample struct {
	Uplink   int
	Downlink int
	RTT      time.Duration
}

func (SignalSample) isQualitySample() {}

// LiveKitSample carries the named enum pair a LiveKit room reports for the
// local participant.
type LiveKitSample struct {
	Local  livekit.ConnectionQuality
	Remote livekit.ConnectionQuality
}

func (LiveKitSample) isQualitySample() {}

// StatsSample carries a raw stats report from a peer connection.
type StatsSample struct {
	Report webrtc.StatsReport
}

func (StatsSample) isQualitySample() {}
