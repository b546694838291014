package hyphae

import (
	"context"

	"github.com/hyphae-os/hyphae/internal/flows"
	"github.com/hyphae-os/hyphae/session"
)

// backend verifies credentials for one Mode. Errors must already be mapped to
// the package sentinels (ErrInvalidCredentials, ErrPinInvalid) or match
// ErrTransport.
type backend interface {
	authenticate(ctx context.Context, username, password string) (flows.Authenticated, error)
	checkPin(ctx context.Context, s *session.Session, pin string) error
	resume(ctx context.Context, cred *session.Credential) (flows.Authenticated, error)
	// detach forgets the transport state behind s and returns the call that
	// ends it server-side, or nil when there is nothing to end.
	detach(s *session.Session) func(ctx context.Context) error
	credential(s *session.Session) *session.Credential
}
