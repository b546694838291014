package hyphae

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyphae-os/hyphae/api"
	"github.com/hyphae-os/hyphae/internal/flows"
	"github.com/hyphae-os/hyphae/session"
)

// remoteBackend delegates every decision to the HyphaeOS REST backend. The
// transport cookies in the client's jar are what a later restore replays.
type remoteBackend struct {
	client *api.Client
	now    func() time.Time
}

func (b *remoteBackend) authenticate(ctx context.Context, username, password string) (flows.Authenticated, error) {
	token, err := b.client.Login(ctx, username, password, "")
	if err != nil {
		return flows.Authenticated{}, rejectionAs(err, ErrInvalidCredentials)
	}
	return b.profile(ctx, token, username, false)
}

func (b *remoteBackend) checkPin(ctx context.Context, s *session.Session, pin string) error {
	if err := b.client.VerifyPin(ctx, s.Token, pin); err != nil {
		return rejectionAs(err, ErrPinInvalid)
	}
	return nil
}

func (b *remoteBackend) resume(ctx context.Context, cred *session.Credential) (flows.Authenticated, error) {
	if len(cred.Cookies) > 0 {
		cookies := make([]*http.Cookie, 0, len(cred.Cookies))
		for _, c := range cred.Cookies {
			cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
		}
		b.client.SetCookies(cookies)
	}

	token, err := b.client.Refresh(ctx)
	if err != nil {
		return flows.Authenticated{}, err
	}
	return b.profile(ctx, token, "", true)
}

func (b *remoteBackend) detach(*session.Session) func(ctx context.Context) error {
	cookies := b.client.Cookies()
	b.client.ClearCookies()
	return func(ctx context.Context) error {
		return b.client.Logout(ctx, cookies)
	}
}

func (b *remoteBackend) credential(s *session.Session) *session.Credential {
	cred := &session.Credential{
		DeviceID: s.Identity.DeviceID,
		Token:    s.Token,
		IssuedAt: b.now(),
	}
	for _, c := range b.client.Cookies() {
		cred.Cookies = append(cred.Cookies, session.Cookie{Name: c.Name, Value: c.Value})
	}
	return cred
}

// profile resolves the identity behind token. keepPin carries the backend's
// pinVerified flag; a fresh login always starts unverified.
func (b *remoteBackend) profile(ctx context.Context, token, username string, keepPin bool) (flows.Authenticated, error) {
	p, err := b.client.Me(ctx, token)
	if err != nil {
		return flows.Authenticated{}, err
	}
	if p.Username != "" {
		username = p.Username
	}
	return flows.Authenticated{
		Identity: session.Identity{
			UserID:   p.ID,
			Username: username,
			Email:    p.Email,
			Role:     flows.ResolveRole(p.Role, username),
			Avatar:   p.Avatar,
		},
		Token:       token,
		PinVerified: keepPin && p.PinVerified,
	}, nil
}

// rejectionAs maps a backend rejection onto sentinel and leaves transport
// failures untouched.
func rejectionAs(err error, sentinel error) error {
	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrRejected) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
