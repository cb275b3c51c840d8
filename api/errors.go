package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrRequestFailed indicates the service rejected or failed a request
	ErrRequestFailed = errors.New("session service request failed")

	// ErrUnauthorized indicates the API token was refused
	ErrUnauthorized = errors.New("session service rejected the token")

	// ErrSessionNotFound indicates an unknown session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrRateLimited indicates the account hit its request quota
	ErrRateLimited = errors.New("session service rate limit hit")
)

// serviceError is the JSON error body the service returns.
type serviceError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseError maps an error response onto the package sentinels, keeping
// the service's message for context.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	msg := strings.TrimSpace(string(body))
	var se serviceError
	if err := json.Unmarshal(body, &se); err == nil && se.Error.Message != "" {
		msg = se.Error.Message
	}

	var base error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		base = ErrUnauthorized
	case http.StatusNotFound:
		base = ErrSessionNotFound
	case http.StatusTooManyRequests:
		base = ErrRateLimited
	default:
		base = ErrRequestFailed
	}

	if msg == "" {
		return fmt.Errorf("%w: status %d", base, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s (status %d)", base, msg, resp.StatusCode)
}
