package backend

import (
	"errors"
	"net/http"
)

// ErrNotFound is matched by errors.Is for 404 responses and for payment
// lookups that return no document.
var ErrNotFound = errors.New("resource not found")

// Error is a non-success backend response. Message follows the contract: the
// structured "message" field when present, else the raw body, else a generic
// status text. Message is what gets mapped onto the error-code taxonomy.
type Error struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes ErrNotFound for 404 responses.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Message extracts the user-facing message from any backend error.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
