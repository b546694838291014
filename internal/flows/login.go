package flows

import (
	"context"
	"errors"

	"github.com/hyphae-os/hyphae/session"
)

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	LoginSuccess    int
	LoginFailure    int
	LoginSuperseded int
	TransportError  int
	SessionCreated  int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess    string
	LoginFailure    string
	LoginSuperseded string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidInput       error
	InvalidCredentials error
	LoginSuperseded    error
	Transport          error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks

	MinUsernameLength int
	MinPasswordLength int
	DeviceID          string

	Authenticate func(ctx context.Context, username, password string) (Authenticated, error)
	// Begin claims a new generation. Anything claimed earlier becomes stale.
	Begin func() uint64
	// Commit writes s when generation is still the latest and reports
	// whether it did.
	Commit func(generation uint64, s *session.Session) bool
	// Persist stores the transport credential for later restore. Errors are
	// logged, never returned.
	Persist func(ctx context.Context, s *session.Session) error

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin validates the credentials, authenticates through the backend and
// commits a fresh unverified session. A completion that lost the race to a
// newer Login or Logout returns Errors.LoginSuperseded and leaves the store
// untouched.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (*session.Session, error) {
	deps.fill()
	if deps.Authenticate == nil || deps.Begin == nil || deps.Commit == nil || deps.NewSessionID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if !ValidateCredentials(username, password, deps.MinUsernameLength, deps.MinPasswordLength) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, nil, deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "validation",
			}
		})
		return nil, deps.Errors.InvalidInput
	}

	generation := deps.Begin()

	auth, err := deps.Authenticate(ctx, username, password)
	if err != nil {
		reason := "rejected"
		if deps.Errors.Transport != nil && errors.Is(err, deps.Errors.Transport) {
			reason = "transport"
			deps.MetricInc(deps.Metrics.TransportError)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, nil, err, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     reason,
			}
		})
		return nil, err
	}

	id, err := deps.NewSessionID()
	if err != nil {
		return nil, err
	}
	next := newSession(id, auth, deps.DeviceID, deps.Now())
	next.PinVerified = false

	if !deps.Commit(generation, next) {
		deps.MetricInc(deps.Metrics.LoginSuperseded)
		deps.EmitAudit(ctx, deps.Events.LoginSuperseded, false, next, deps.Errors.LoginSuperseded, func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return nil, deps.Errors.LoginSuperseded
	}

	if deps.Persist != nil {
		if err := deps.Persist(ctx, next); err != nil {
			deps.Warn("hyphae: credential persist failed", "session_id", next.ID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, next, nil, nil)
	return next, nil
}
