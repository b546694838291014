package hyphae

import (
	"errors"

	"github.com/hyphae-os/hyphae/api"
)

var (
	// ErrInvalidInput is returned when a username or password fails the
	// minimum-length rule. Nothing is sent to the backend.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned when the backend rejects a username and password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginSuperseded is returned by a login or restore whose result was
	// discarded because a newer login or a logout started after it.
	ErrLoginSuperseded = errors.New("login superseded")

	// ErrNoSession is returned by VerifyPin when nobody is logged in.
	ErrNoSession = errors.New("no session")
	// ErrPinMalformed is returned for a PIN that is not exactly four digits.
	ErrPinMalformed = errors.New("pin malformed")
	// ErrPinInvalid is returned when a well-formed PIN is rejected.
	ErrPinInvalid = errors.New("pin invalid")
	// ErrPinRateLimited is returned once the PIN attempt budget is spent.
	ErrPinRateLimited = errors.New("pin rate limited")
	// ErrSessionChanged is returned when the session was replaced or cleared
	// while a PIN check was in flight.
	ErrSessionChanged = errors.New("session changed during verification")

	// ErrSessionRestore wraps every silent-restore failure.
	ErrSessionRestore = errors.New("session restore failed")

	// ErrTransport matches network failures and unexpected backend responses.
	ErrTransport = api.ErrTransport

	ErrEngineNotReady = errors.New("engine not initialized")
)
