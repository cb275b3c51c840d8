// Package avatarstream implements a transport-agnostic client for live
// avatar streaming sessions.
//
// A session joins a remote avatar endpoint over one of several
// interchangeable real-time transports, exchanges chat and control
// messages with it over a size-limited data channel, and presents a
// normalized view of connection health regardless of which transport is
// active. This package provides the facade that integrates all
// subsystems: the transport adapters, the chunked wire protocol, the
// participant registry and the quality normalizer.
//
// # Getting Started
//
// Create a Client with options, connect with provider credentials, and
// watch the session through handlers and state subscribers:
//
//	options := avatarstream.NewOptions()
//	options.Provider = transport.ProviderLiveKit
//	options.Sender = "viewer"
//
//	client, err := avatarstream.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handlers := &avatarstream.Handlers{
//	    OnChatMessage: func(msg avatarstream.ChatMessage) {
//	        fmt.Printf("avatar: %s\n", msg.Text)
//	    },
//	}
//
//	err = client.Connect(ctx, transport.Credentials{
//	    transport.CredServerURL:   "wss://rtc.example.com",
//	    transport.CredAccessToken: token,
//	}, handlers)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	unsubscribe := client.Subscribe(func(s avatarstream.StreamingState) {
//	    fmt.Printf("state=%s speaking=%v\n", s.State, s.IsSpeaking)
//	})
//	defer unsubscribe()
//
//	client.SendMessage(ctx, "Hello!")
//
// Session credentials are usually minted by the session service; the
// api package wraps it:
//
//	svc := api.NewClient(apiToken)
//	session, err := svc.CreateSession(ctx, api.CreateSessionRequest{AvatarID: "ava-7"})
//	// session.Provider selects the adapter, session.Credentials plugs
//	// into Connect.
//
// # Core Types
//
// The package defines several core types:
//
//   - [Client]: session facade owning the state machine and messaging
//   - [Options]: configuration for creating a new Client
//   - [Handlers]: typed event callbacks for one session
//   - [StreamingState]: observable snapshot broadcast to subscribers
//   - [AvatarParameters]: voice and presentation settings
//
// # Connection Lifecycle
//
// The session moves through Disconnected, Connecting, Connected,
// Reconnecting and Failed. A transport-level drop while connected
// enters Reconnecting without losing participants; recovery returns to
// Connected, a terminal drop ends in Disconnected with the registry
// cleared. Disconnect never fails, no matter the state underneath.
//
// # Messaging
//
// Chat text travels as JSON envelopes on the transport's data channel.
// Messages longer than the frame budget are split into chunks that
// share a message id and are paced to the outbound byte budget; the
// receive side reassembles chunks in index order regardless of arrival
// order. Commands such as SendInterrupt and SetAvatarParameters are
// always a single frame.
//
// # Errors
//
// Failures map onto a small taxonomy (ErrConnectionFailed,
// ErrInvalidCredentials, ErrMessageSendFailed, ...) so callers branch
// with errors.Is. Connection-affecting faults additionally surface to
// subscribers through StreamingState.Err.
package avatarstream
