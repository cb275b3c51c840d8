package transport

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Built-in provider names accepted by New.
const (
	ProviderLiveKit = "livekit"
	ProviderWebRTC  = "webrtc"
	ProviderSignal  = "signal"
)

// Constructor builds an adapter from validated configuration.
type Constructor func(cfg Config) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register installs a constructor under a provider name, replacing any
// previous registration. The built-in providers are registered at init;
// applications may add their own.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the adapter for a provider. Environment overrides are applied
// to cfg first, then the result is validated.
func New(provider string, cfg Config) (Transport, error) {
	cfg = cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	ctor, ok := registry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownProvider, provider, Providers())
	}

	t, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct %q transport: %w", provider, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"provider":    provider,
		"frame_bytes": cfg.MaxEncodedBytes,
		"send_budget": cfg.SendBytesPerSecond,
	}).Info("Transport created")
	return t, nil
}

func init() {
	Register(ProviderLiveKit, func(cfg Config) (Transport, error) {
		return NewLiveKitTransport(cfg), nil
	})
	Register(ProviderWebRTC, func(cfg Config) (Transport, error) {
		return NewWebRTCTransport(cfg), nil
	})
	Register(ProviderSignal, func(cfg Config) (Transport, error) {
		return NewSignalTransport(cfg), nil
	})
}
