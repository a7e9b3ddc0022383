package threedi

import (
	"errors"
	"fmt"
)

// 3Di client errors.
var (
	// ErrOrganisationNotFound is returned when no organisation matches the
	// configured name.
	ErrOrganisationNotFound = errors.New("organisation not found")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNoCredentials is returned when neither a personal API token nor a
	// username and password were configured.
	ErrNoCredentials = errors.New("no 3Di API credentials configured")

	// ErrEmptyToken is returned when the token endpoint answers without an
	// access token.
	ErrEmptyToken = errors.New("token endpoint returned no access token")
)

// maxErrorBody limits how much of an error response body is kept.
const maxErrorBody = 4096

// APIError is a non-2xx response of the 3Di API.
type APIError struct {
	// Method and Path identify the failed request.
	Method string
	Path   string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the (truncated) response body, usually a JSON error document.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("3di api: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("3di api: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
