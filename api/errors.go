package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport covers network failures, non-2xx responses that are not
	// credential rejections, and responses that cannot be decoded.
	ErrTransport = errors.New("transport failure")
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected is returned when the backend answers with an {error} body
	// for a well-formed request (bad credentials, bad code).
	ErrRejected = errors.New("request rejected")
	// ErrInvalidAgentType is returned for agent log types that are not a plain path segment.
	ErrInvalidAgentType = errors.New("invalid agent type")
)

// Error describes a failed API call. Message is the backend's {error} text when
// it sent one.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
	kind    error
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v: %s", e.Method, e.Path, e.kind, msg)
	}
	return fmt.Sprintf("%s %s: %d %v: %s", e.Method, e.Path, e.Status, e.kind, msg)
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrRejected
	default:
		return ErrTransport
	}
}
