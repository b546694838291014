package flows

import (
	"context"
	"errors"

	"github.com/hyphae-os/hyphae/session"
)

// PinMetrics carries metric IDs used by the second-factor flow.
type PinMetrics struct {
	PinSuccess     int
	PinFailure     int
	PinRateLimited int
	TransportError int
}

// PinEvents carries audit event names used by the second-factor flow.
type PinEvents struct {
	PinSuccess     string
	PinFailure     string
	PinRateLimited string
}

// PinErrors carries host-level sentinel errors used by the second-factor flow.
type PinErrors struct {
	EngineNotReady error
	NoSession      error
	PinMalformed   error
	PinInvalid     error
	PinRateLimited error
	SessionChanged error
	Transport      error
}

// PinDeps captures second-factor dependencies.
type PinDeps struct {
	Hooks

	Current  func() *session.Session
	CheckPin func(ctx context.Context, s *session.Session, pin string) error

	// Optional attempt limiter keyed by device. All three are set together
	// or not at all.
	CheckRate     func(ctx context.Context, deviceID string) error
	IncrementRate func(ctx context.Context, deviceID string) error
	ResetRate     func(ctx context.Context, deviceID string) error

	// Commit writes s only while the store still holds sessionID.
	Commit func(sessionID string, s *session.Session) bool

	Metrics PinMetrics
	Events  PinEvents
	Errors  PinErrors
}

// RunVerifyPin upgrades the current session to PinVerified when the backend
// accepts pin. A session that is already verified is returned unchanged.
func RunVerifyPin(ctx context.Context, pin string, deps PinDeps) (*session.Session, error) {
	deps.fill()
	if deps.Current == nil || deps.CheckPin == nil || deps.Commit == nil {
		return nil, deps.Errors.EngineNotReady
	}

	current := deps.Current()
	if current == nil {
		return nil, deps.Errors.NoSession
	}
	if current.PinVerified {
		return current, nil
	}
	if !WellFormedPin(pin) {
		deps.MetricInc(deps.Metrics.PinFailure)
		deps.EmitAudit(ctx, deps.Events.PinFailure, false, current, deps.Errors.PinMalformed, func() map[string]string {
			return map[string]string{"reason": "malformed"}
		})
		return nil, deps.Errors.PinMalformed
	}

	deviceID := current.Identity.DeviceID
	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, deviceID); err != nil {
			deps.MetricInc(deps.Metrics.PinRateLimited)
			deps.EmitAudit(ctx, deps.Events.PinRateLimited, false, current, deps.Errors.PinRateLimited, nil)
			return nil, deps.Errors.PinRateLimited
		}
	}

	if err := deps.CheckPin(ctx, current, pin); err != nil {
		if !errors.Is(err, deps.Errors.PinInvalid) {
			deps.MetricInc(deps.Metrics.TransportError)
			deps.EmitAudit(ctx, deps.Events.PinFailure, false, current, err, func() map[string]string {
				return map[string]string{"reason": "transport"}
			})
			return nil, err
		}
		if deps.IncrementRate != nil {
			if rerr := deps.IncrementRate(ctx, deviceID); rerr != nil {
				deps.MetricInc(deps.Metrics.PinRateLimited)
				deps.EmitAudit(ctx, deps.Events.PinRateLimited, false, current, deps.Errors.PinRateLimited, nil)
				return nil, deps.Errors.PinRateLimited
			}
		}
		deps.MetricInc(deps.Metrics.PinFailure)
		deps.EmitAudit(ctx, deps.Events.PinFailure, false, current, deps.Errors.PinInvalid, func() map[string]string {
			return map[string]string{"reason": "mismatch"}
		})
		return nil, deps.Errors.PinInvalid
	}

	next := current.Clone()
	next.PinVerified = true
	if !deps.Commit(current.ID, next) {
		return nil, deps.Errors.SessionChanged
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, deviceID); err != nil {
			deps.Warn("hyphae: pin limiter reset failed", "session_id", next.ID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.PinSuccess)
	deps.EmitAudit(ctx, deps.Events.PinSuccess, true, next, nil, nil)
	return next, nil
}
