package quality

import (
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// ordinalScore maps a 0-6 signal gateway ordinal (higher is better) to a
// 0-100 score. The table is strictly increasing so a better native report
// never normalizes to a worse score.
var ordinalScore = [7]int{0, 15, 30, 50, 70, 85, 100}

// Normalize converts a transport-native sample into the uniform shape.
// A nil or unrecognized sample returns nil.
func Normalize(s Sample) *ConnectionQuality {
	if s == nil {
		return nil
	}
	switch v := s.(type) {
	case SignalSample:
		return normalizeSignal(v)
	case LiveKitSample:
		return normalizeLiveKit(v)
	case StatsSample:
		return normalizeStats(v)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Normalize",
			"sample":   v,
		}).Warn("Unrecognized quality sample shape")
		return nil
	}
}

func normalizeSignal(s SignalSample) *ConnectionQuality {
	up := ordinalScore[clampOrdinal(s.Uplink)]
	down := ordinalScore[clampOrdinal(s.Downlink)]
	worst := up
	if down < worst {
		worst = down
	}

	th := DefaultThresholds()
	cq := &ConnectionQuality{
		Score:      worst,
		Uplink:     th.GradeFor(up),
		Downlink:   th.GradeFor(down),
		RTT:        estimateRTT(worst),
		PacketLoss: estimateLoss(worst),
	}
	if s.RTT > 0 {
		cq.RTT = s.RTT
	}
	return cq
}

func clampOrdinal(v int) int {
	if v < 0 {
		return 0
	}
	if v > 6 {
		return 6
	}
	return v
}

func normalizeLiveKit(s LiveKitSample) *ConnectionQuality {
	local := livekitScore(s.Local)
	remote := livekitScore(s.Remote)
	worst := local
	if remote < worst {
		worst = remote
	}

	th := DefaultThresholds()
	return &ConnectionQuality{
		Score:      worst,
		Uplink:     th.GradeFor(local),
		Downlink:   th.GradeFor(remote),
		RTT:        estimateRTT(worst),
		PacketLoss: estimateLoss(worst),
	}
}

// livekitScore maps the room enum to a score. The enum's numeric values do
// not order by quality (LOST is highest), so the mapping is explicit.
func livekitScore(q livekit.ConnectionQuality) int {
	switch q {
	case livekit.ConnectionQuality_EXCELLENT:
		return 95
	case livekit.ConnectionQuality_GOOD:
		return 75
	case livekit.ConnectionQuality_POOR:
		return 40
	case livekit.ConnectionQuality_LOST:
		return 0
	default:
		return 40
	}
}

func normalizeStats(s StatsSample) *ConnectionQuality {
	m := extractStats(s.Report)
	score := scoreStats(m)

	g := DefaultThresholds().GradeFor(score)
	return &ConnectionQuality{
		Score:      score,
		Uplink:     g,
		Downlink:   g,
		RTT:        m.rtt,
		PacketLoss: m.lossRatio * 100,
	}
}

type statsMetrics struct {
	rtt       time.Duration
	jitter    time.Duration
	lossRatio float64
}

// extractStats walks a stats report and pulls the fields the score model
// needs: the nominated pair's round trip, inbound jitter and inbound loss.
func extractStats(report webrtc.StatsReport) statsMetrics {
	var m statsMetrics
	for _, stat := range report {
		switch s := stat.(type) {
		case webrtc.ICECandidatePairStats:
			if s.CurrentRoundTripTime > 0 {
				m.rtt = time.Duration(s.CurrentRoundTripTime * float64(time.Second))
			}
		case webrtc.InboundRTPStreamStats:
			if s.Jitter > 0 {
				m.jitter = time.Duration(s.Jitter * float64(time.Second))
			}
			if s.PacketsReceived > 0 && s.PacketsLost > 0 {
				total := float64(s.PacketsReceived) + float64(s.PacketsLost)
				m.lossRatio = float64(s.PacketsLost) / total
			}
		}
	}
	return m
}

// scoreStats computes a 0-100 score by deducting for round trip, loss and
// jitter. Deductions are continuous inside each tier and capped at 30, 30
// and 20 points respectively.
func scoreStats(m statsMetrics) int {
	score := 100.0

	rttMs := float64(m.rtt.Milliseconds())
	switch {
	case rttMs > 300:
		score -= 30
	case rttMs > 100:
		score -= 10 + (rttMs-100)/200*20
	case rttMs > 50:
		score -= (rttMs - 50) / 50 * 10
	}

	loss := m.lossRatio
	switch {
	case loss > 0.05:
		score -= 30
	case loss > 0.02:
		score -= 10 + (loss-0.02)/0.03*20
	case loss > 0:
		score -= loss / 0.02 * 10
	}

	jitterMs := float64(m.jitter.Milliseconds())
	switch {
	case jitterMs > 100:
		score -= 20
	case jitterMs > 50:
		score -= 10 + (jitterMs-50)/50*10
	case jitterMs > 20:
		score -= (jitterMs - 20) / 30 * 10
	}

	if score < 0 {
		score = 0
	}
	return int(score + 0.5)
}

// estimateRTT derives a round trip estimate for transports that report
// only coarse quality. Non-increasing in score.
func estimateRTT(score int) time.Duration {
	switch {
	case score >= 85:
		return 40 * time.Millisecond
	case score >= 70:
		return 100 * time.Millisecond
	case score >= 50:
		return 180 * time.Millisecond
	case score > 0:
		return 300 * time.Millisecond
	default:
		return 800 * time.Millisecond
	}
}

// estimateLoss derives a loss percentage estimate for transports that
// report only coarse quality. Non-increasing in score.
func estimateLoss(score int) float64 {
	switch {
	case score >= 85:
		return 0.2
	case score >= 70:
		return 1
	case score >= 50:
		return 3
	case score > 0:
		return 8
	default:
		return 30
	}
}
