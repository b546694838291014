package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyphae-os/hyphae/session"
)

// RestoreMetrics carries metric IDs used by the restore flow.
type RestoreMetrics struct {
	RestoreSuccess int
	RestoreFailure int
	SessionCreated int
}

// RestoreEvents carries audit event names used by the restore flow.
type RestoreEvents struct {
	RestoreSuccess string
	RestoreFailure string
}

// RestoreErrors carries host-level sentinel errors used by the restore flow.
type RestoreErrors struct {
	EngineNotReady     error
	SessionRestore     error
	LoginSuperseded    error
	CredentialNotFound error
}

// RestoreDeps captures silent-restore dependencies.
type RestoreDeps struct {
	Hooks

	DeviceID string

	LoadCredential   func(ctx context.Context, deviceID string) (*session.Credential, error)
	DeleteCredential func(ctx context.Context, deviceID string) error
	Resume           func(ctx context.Context, cred *session.Credential) (Authenticated, error)
	Persist          func(ctx context.Context, s *session.Session) error

	Begin  func() uint64
	Commit func(generation uint64, s *session.Session) bool

	Metrics RestoreMetrics
	Events  RestoreEvents
	Errors  RestoreErrors
}

// RunRestore rebuilds a session from the credential persisted for this device.
// Every failure leaves the store absent and is returned wrapped in
// Errors.SessionRestore.
func RunRestore(ctx context.Context, deps RestoreDeps) (*session.Session, error) {
	deps.fill()
	if deps.LoadCredential == nil || deps.Resume == nil || deps.Begin == nil || deps.Commit == nil || deps.NewSessionID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(reason string, err error) error {
		deps.MetricInc(deps.Metrics.RestoreFailure)
		deps.EmitAudit(ctx, deps.Events.RestoreFailure, false, nil, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return fmt.Errorf("%w: %w", deps.Errors.SessionRestore, err)
	}

	generation := deps.Begin()

	cred, err := deps.LoadCredential(ctx, deps.DeviceID)
	if err != nil {
		reason := "load"
		if deps.Errors.CredentialNotFound != nil && errors.Is(err, deps.Errors.CredentialNotFound) {
			reason = "not_found"
		}
		return nil, fail(reason, err)
	}

	auth, err := deps.Resume(ctx, cred)
	if err != nil {
		if deps.DeleteCredential != nil {
			if derr := deps.DeleteCredential(ctx, deps.DeviceID); derr != nil {
				deps.Warn("hyphae: stale credential delete failed", "device_id", deps.DeviceID, "error", derr)
			}
		}
		return nil, fail("resume", err)
	}

	id, err := deps.NewSessionID()
	if err != nil {
		return nil, fail("session_id", err)
	}
	next := newSession(id, auth, deps.DeviceID, deps.Now())

	if !deps.Commit(generation, next) {
		return nil, fail("superseded", deps.Errors.LoginSuperseded)
	}

	if deps.Persist != nil {
		if err := deps.Persist(ctx, next); err != nil {
			deps.Warn("hyphae: credential persist failed", "session_id", next.ID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.RestoreSuccess)
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.EmitAudit(ctx, deps.Events.RestoreSuccess, true, next, nil, nil)
	return next, nil
}
