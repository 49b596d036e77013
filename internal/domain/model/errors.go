package model

import (
	"errors"
	"fmt"
)

// Error classes. Adapters and services wrap these with fmt.Errorf("...: %w")
// so callers can classify a failure with errors.Is.
var (
	// ErrConfiguration marks missing or invalid setup parameters detected
	// before any network call. Never retried automatically.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthorization marks a provider rejection of a handshake step or a
	// failed CSRF check. The user must restart the handshake.
	ErrAuthorization = errors.New("authorization error")

	// ErrTransient marks a network or provider failure during a query or
	// poll. Safe to retry on the next trigger or tick.
	ErrTransient = errors.New("transient network error")

	// ErrData marks a malformed or unexpected response body.
	ErrData = errors.New("unexpected response data")
)

// ErrCSRFMismatch is returned when the CSRF token carried in an OAuth 2.0
// state parameter does not match the one stored for the connection.
var ErrCSRFMismatch = fmt.Errorf("%w: csrf token mismatch", ErrAuthorization)

// ErrNotAuthorized is returned when a node needs protected data but its
// connection has no access token.
var ErrNotAuthorized = fmt.Errorf("%w: connection has no access token", ErrConfiguration)

// ProviderError carries the status code and body of a non-success provider
// response so it can be shown to the user.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}
