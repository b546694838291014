package hyphae

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyphae-os/hyphae/internal/flows"
	"github.com/hyphae-os/hyphae/internal/pinhash"
	"github.com/hyphae-os/hyphae/jwt"
	"github.com/hyphae-os/hyphae/session"
)

// localBackend accepts any credentials that pass the length rule and signs
// its own tokens. Without a pinHash every well-formed PIN is accepted.
type localBackend struct {
	tokens   *jwt.Manager
	deviceID string
	pinHash  string
	now      func() time.Time
}

func (b *localBackend) authenticate(_ context.Context, username, _ string) (flows.Authenticated, error) {
	identity := session.Identity{
		UserID:   uuid.NewString(),
		Username: username,
		Role:     flows.DeriveRole(username),
		DeviceID: b.deviceID,
	}
	token, err := b.issue(identity)
	if err != nil {
		return flows.Authenticated{}, err
	}
	return flows.Authenticated{Identity: identity, Token: token}, nil
}

func (b *localBackend) checkPin(_ context.Context, _ *session.Session, pin string) error {
	if b.pinHash == "" {
		if flows.WellFormedPin(pin) {
			return nil
		}
		return ErrPinInvalid
	}
	ok, err := pinhash.Verify(pin, b.pinHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPinInvalid
	}
	return nil
}

// resume re-validates a token this backend issued and reissues it. A local
// restore never carries the PIN over.
func (b *localBackend) resume(_ context.Context, cred *session.Credential) (flows.Authenticated, error) {
	claims, err := b.tokens.Parse(cred.Token)
	if err != nil {
		return flows.Authenticated{}, err
	}
	if claims.DeviceID != cred.DeviceID {
		return flows.Authenticated{}, fmt.Errorf("token bound to device %q", claims.DeviceID)
	}
	role, ok := session.ParseRole(claims.Role)
	if !ok {
		role = flows.DeriveRole(claims.Username)
	}

	identity := session.Identity{
		UserID:   claims.UID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     role,
		DeviceID: claims.DeviceID,
	}
	token, err := b.issue(identity)
	if err != nil {
		return flows.Authenticated{}, err
	}
	return flows.Authenticated{Identity: identity, Token: token}, nil
}

func (b *localBackend) detach(*session.Session) func(ctx context.Context) error {
	return nil
}

func (b *localBackend) credential(s *session.Session) *session.Credential {
	return &session.Credential{
		DeviceID: s.Identity.DeviceID,
		Token:    s.Token,
		IssuedAt: b.now(),
	}
}

func (b *localBackend) issue(identity session.Identity) (string, error) {
	return b.tokens.Issue(jwt.SessionClaims{
		UID:      identity.UserID,
		Username: identity.Username,
		Email:    identity.Email,
		Role:     string(identity.Role),
		DeviceID: identity.DeviceID,
		SID:      uuid.NewString(),
	}, b.now())
}
