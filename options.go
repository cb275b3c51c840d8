package avatarstream

import (
	"time"

	"github.com/avatarstream/client-sdk-go/transport"
	"github.com/avatarstream/client-sdk-go/wire"
)

// Options configures a Client. Use NewOptions for defaults and adjust
// fields before passing the result to New.
type Options struct {
	// Provider selects the built-in transport adapter by name.
	Provider string

	// Transport overrides Provider with a caller-supplied adapter.
	// Tests use this to plug in transport.MockTransport.
	Transport transport.Transport

	// Config carries the tunables shared with the transport layer. The
	// codec and pacer derive their budgets from it.
	Config transport.Config

	// AssemblyTTL bounds how long a partially received message is kept
	// before its chunks are discarded.
	AssemblyTTL time.Duration

	// Sender tags outbound chat messages so the remote endpoint can
	// attribute them. Empty omits the tag.
	Sender string
}

// NewOptions creates an Options with default settings.
func NewOptions() *Options {
	return &Options{
		Provider:    transport.ProviderLiveKit,
		Config:      transport.DefaultConfig(),
		AssemblyTTL: wire.DefaultAssemblyTTL,
	}
}
