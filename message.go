package hyphae

import "errors"

// User-facing texts. Raw errors are logged, never shown.
const (
	MessageNetwork     = "Unable to connect to server"
	MessageAuth        = "Authentication failed"
	MessageValidation  = "Invalid input provided"
	MessagePinInvalid  = "Invalid PIN. Please try again."
	MessageRateLimited = "Too many attempts. Please try again later."
)

// UserMessage maps an engine error onto the generic text a login or PIN
// screen may display. It returns "" for a nil error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return MessageValidation
	case errors.Is(err, ErrPinMalformed), errors.Is(err, ErrPinInvalid):
		return MessagePinInvalid
	case errors.Is(err, ErrPinRateLimited):
		return MessageRateLimited
	case errors.Is(err, ErrTransport):
		return MessageNetwork
	default:
		return MessageAuth
	}
}
