// Package api talks to the avatar session service over REST. It mints
// sessions, hands back the transport credentials embedded in them, and
// releases sessions when a stream ends.
//
// A Client is bound to one bearer token:
//
//	client := api.NewClient(token)
//	session, err := client.CreateSession(ctx, api.CreateSessionRequest{
//		AvatarID: "ava-7",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.CloseSession(ctx, session.ID)
//
// session.Credentials plugs straight into the transport adapter named
// by session.Provider. Service failures map onto the package sentinels
// (ErrUnauthorized, ErrSessionNotFound, ErrRateLimited, and
// ErrRequestFailed for everything else), so callers branch with
// errors.Is rather than by parsing status codes.
package api
