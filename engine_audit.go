package hyphae

import (
	"context"
	"errors"
	"time"

	"github.com/hyphae-os/hyphae/session"
)

const (
	auditEventLoginSuccess    = "login_success"
	auditEventLoginFailure    = "login_failure"
	auditEventLoginSuperseded = "login_superseded"
	auditEventPinSuccess      = "pin_success"
	auditEventPinFailure      = "pin_failure"
	auditEventPinRateLimited  = "pin_rate_limited"
	auditEventRestoreSuccess  = "restore_success"
	auditEventRestoreFailure  = "restore_failure"
	auditEventLogout          = "logout"
	auditEventRevokeFailure   = "revoke_failure"
)

// AuditErrorCode is the stable, non-sensitive error label recorded on failed
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrSuperseded         AuditErrorCode = "superseded"
	auditErrNoSession          AuditErrorCode = "no_session"
	auditErrPinMalformed       AuditErrorCode = "pin_malformed"
	auditErrPinInvalid         AuditErrorCode = "pin_invalid"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrSessionChanged     AuditErrorCode = "session_changed"
	auditErrCredentialMissing  AuditErrorCode = "credential_missing"
	auditErrTransport          AuditErrorCode = "transport"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	s *session.Session,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		DeviceID:  e.deviceID,
		Success:   success,
		Metadata:  metadata,
	}
	if s != nil {
		event.UserID = s.Identity.UserID
		event.Username = s.Identity.Username
		event.SessionID = s.ID
		event.Role = string(s.Identity.Role)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginSuperseded):
		return auditErrSuperseded
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrPinMalformed):
		return auditErrPinMalformed
	case errors.Is(err, ErrPinInvalid):
		return auditErrPinInvalid
	case errors.Is(err, ErrPinRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionChanged):
		return auditErrSessionChanged
	case errors.Is(err, session.ErrCredentialNotFound):
		return auditErrCredentialMissing
	case errors.Is(err, ErrTransport), errors.Is(err, session.ErrRedisUnavailable):
		return auditErrTransport
	default:
		return auditErrInternal
	}
}
