package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/transport"
)

const sessionsPath = "/v1/sessions"

// Session statuses reported by the service.
const (
	SessionStatusPending = "pending"
	SessionStatusActive  = "active"
	SessionStatusClosed  = "closed"
	SessionStatusExpired = "expired"
)

// Session is one provisioned avatar session. Credentials is the opaque
// bag handed to the matching transport adapter.
type Session struct {
	ID          string                `json:"id"`
	AvatarID    string                `json:"avatar_id"`
	Provider    string                `json:"provider"`
	Status      string                `json:"status"`
	Credentials transport.Credentials `json:"credentials,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
}

// Expired reports whether the session's lease has run out.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// CreateSessionRequest asks the service to provision a session.
type CreateSessionRequest struct {
	// AvatarID selects the avatar to stream.
	AvatarID string `json:"avatar_id"`

	// Provider picks the transport family; the service chooses when
	// empty.
	Provider string `json:"provider,omitempty"`

	// DurationSeconds requests a session lease length.
	DurationSeconds int `json:"duration,omitempty"`
}

// ListOptions filters ListSessions.
type ListOptions struct {
	// Status keeps only sessions in that state when non-empty.
	Status string

	// Page and PageSize select one result page; zero values use the
	// service defaults.
	Page     int
	PageSize int
}

type sessionList struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

// CreateSession provisions a new avatar session and returns it together
// with the transport credentials.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if req.AvatarID == "" {
		return nil, fmt.Errorf("%w: avatar id is required", ErrRequestFailed)
	}

	var session Session
	if err := c.do(ctx, http.MethodPost, sessionsPath, req, &session); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateSession",
		"session":  session.ID,
		"provider": session.Provider,
	}).Info("Session created")
	return &session, nil
}

// GetSession fetches one session by id.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrRequestFailed)
	}

	var session Session
	if err := c.do(ctx, http.MethodGet, sessionsPath+"/"+url.PathEscape(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseSession releases a session. Closing an already closed session is
// not an error on the service side.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id is required", ErrRequestFailed)
	}

	if err := c.do(ctx, http.MethodDelete, sessionsPath+"/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "CloseSession",
		"session":  id,
	}).Info("Session closed")
	return nil
}

// ListSessions returns the sessions visible to the token, newest first.
func (c *Client) ListSessions(ctx context.Context, opts ListOptions) ([]Session, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}

	path := sessionsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list sessionList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Sessions, nil
}
