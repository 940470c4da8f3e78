package shared

import (
	"errors"

	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage extracts text safe to show an operator. Core API failures
// carry the server's own message; anything else collapses to a generic one.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var remote *coreapi.RemoteError
	if errors.As(err, &remote) {
		return remote.Error()
	}
	return "something went wrong, please try again"
}
