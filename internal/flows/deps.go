package flows

import (
	"context"
	"time"

	"github.com/hyphae-os/hyphae/session"
)

// Authenticated is what a backend returns after accepting credentials or
// resuming a persisted credential.
type Authenticated struct {
	Identity    session.Identity
	Token       string
	PinVerified bool
}

// AuditFunc emits one audit record. s may be nil when no session exists yet.
type AuditFunc func(ctx context.Context, event string, success bool, s *session.Session, err error, metadata func() map[string]string)

// Hooks holds the clock, id source and observability hooks every flow accepts.
type Hooks struct {
	Now          func() time.Time
	NewSessionID func() (string, error)
	MetricInc    func(int)
	EmitAudit    AuditFunc
	Warn         func(string, ...any)
}

func (c *Hooks) fill() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.EmitAudit == nil {
		c.EmitAudit = func(context.Context, string, bool, *session.Session, error, func() map[string]string) {}
	}
	if c.Warn == nil {
		c.Warn = func(string, ...any) {}
	}
}

// newSession builds the value committed to the store after a successful
// authentication.
func newSession(id string, auth Authenticated, deviceID string, now time.Time) *session.Session {
	identity := auth.Identity
	if deviceID != "" {
		identity.DeviceID = deviceID
	}
	return &session.Session{
		ID:          id,
		Identity:    identity,
		Token:       auth.Token,
		PinVerified: auth.PinVerified,
		CreatedAt:   now,
	}
}
