// Package apperr defines the error taxonomy shared by the service and
// repository layers. Handlers match these with errors.Is and translate them
// to HTTP statuses.
package apperr

import "errors"

var (
	// ErrNotFound means no user row exists for the requested id.
	ErrNotFound = errors.New("user not found")

	// ErrConflict means the email is already taken by another user. The
	// repository also returns it when the store's unique index rejects a
	// write, which is the authoritative signal under concurrent requests.
	ErrConflict = errors.New("email already registered")
)

// FieldError is a single validation failure on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}
