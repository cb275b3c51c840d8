package avatarstream

import (
	"errors"
	"fmt"

	"github.com/avatarstream/client-sdk-go/transport"
)

var (
	// ErrConnectionFailed indicates a session could not be established
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost indicates an established session dropped
	ErrConnectionLost = errors.New("connection lost")

	// ErrInvalidCredentials indicates the provider rejected the
	// credential bag
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMediaDevice indicates a media track could not be published or
	// controlled
	ErrMediaDevice = errors.New("media device error")

	// ErrTrackNotFound indicates an operation referenced a track that
	// is not published
	ErrTrackNotFound = errors.New("track not found")

	// ErrMessageSendFailed indicates the transport rejected an
	// outbound frame
	ErrMessageSendFailed = errors.New("message send failed")

	// ErrInvalidConfiguration indicates configuration or content the
	// codec cannot carry
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknown wraps an unexpected transport failure that matches no
	// other category
	ErrUnknown = errors.New("unknown error")
)

// mapConnectError folds a transport connect failure into the session
// taxonomy. Credential problems surface as ErrInvalidCredentials,
// everything else as ErrConnectionFailed.
func mapConnectError(err error) error {
	switch {
	case errors.Is(err, transport.ErrMissingCredential),
		errors.Is(err, transport.ErrAuthRejected):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
}

// mapPublishError folds a transport media failure into the session
// taxonomy. Media errors never change connection state.
func mapPublishError(err error) error {
	switch {
	case errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrNotReady):
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	case errors.Is(err, transport.ErrTrackNotFound):
		return fmt.Errorf("%w: %v", ErrTrackNotFound, err)
	case errors.Is(err, transport.ErrNotSupported):
		return fmt.Errorf("%w: %v", ErrMediaDevice, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
}

// mapEncodeError folds a codec failure into the messaging taxonomy.
// Empty content, oversized content and unsatisfiable frame budgets all
// count as configuration problems.
func mapEncodeError(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
}

// mapLostError attaches the transport's reason to ErrConnectionLost.
func mapLostError(err error) error {
	if err == nil {
		return ErrConnectionLost
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}
