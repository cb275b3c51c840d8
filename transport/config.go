package transport

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/limits"
)

// Environment variables that override Config tunables at construction.
const (
	EnvMaxFrameBytes = "AVATARSTREAM_MAX_FRAME_BYTES"
	EnvSendBudgetBPS = "AVATARSTREAM_SEND_BUDGET_BPS"
)

// Config carries the tunables shared by every adapter.
type Config struct {
	// MaxEncodedBytes caps one encoded frame on the data channel.
	MaxEncodedBytes int

	// SendBytesPerSecond is the outbound pacing budget.
	SendBytesPerSecond int

	// QualityInterval is how often the client polls SampleQuality.
	QualityInterval time.Duration

	// ConnectTimeout bounds the initial connection establishment.
	ConnectTimeout time.Duration

	// ICEServers lists STUN and TURN URLs for adapters that gather ICE
	// candidates themselves.
	ICEServers []string
}

// DefaultConfig returns the tunables that work across all supported
// providers.
func DefaultConfig() Config {
	return Config{
		MaxEncodedBytes:    limits.DefaultMaxEncodedBytes,          // sendable on every provider
		SendBytesPerSecond: limits.DefaultSendBudgetBytesPerSecond, // below vendor throttling
		QualityInterval:    2 * time.Second,
		ConnectTimeout:     15 * time.Second,
		ICEServers:         []string{"stun:stun.l.google.com:19302"},
	}
}

// Validate checks the configuration for values no adapter can operate
// with.
func (c Config) Validate() error {
	if err := limits.ValidateFrameBudget(c.MaxEncodedBytes); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := limits.ValidateSendBudget(c.SendBytesPerSecond); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.QualityInterval <= 0 {
		return fmt.Errorf("config: quality interval must be positive, got %s", c.QualityInterval)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("config: connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	return nil
}

// ApplyEnvOverrides returns a copy of c with environment overrides
// applied. New applies them automatically; callers constructing adapters
// directly apply them once themselves. Unparseable values are logged and
// skipped; range validation happens later in Validate.
func (c Config) ApplyEnvOverrides() Config {
	if v := os.Getenv(EnvMaxFrameBytes); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ApplyEnvOverrides",
				"variable": EnvMaxFrameBytes,
				"value":    v,
			}).Warn("Ignoring unparseable frame budget override")
		} else {
			c.MaxEncodedBytes = n
		}
	}
	if v := os.Getenv(EnvSendBudgetBPS); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ApplyEnvOverrides",
				"variable": EnvSendBudgetBPS,
				"value":    v,
			}).Warn("Ignoring unparseable send budget override")
		} else {
			c.SendBytesPerSecond = n
		}
	}
	return c
}
