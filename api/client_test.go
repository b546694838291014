package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second, UserAgent: "hyphae-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestLoginSendsCredentialsAndStoresCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Email != "alice" || req.Password != "password123" || req.Code != "" {
			t.Errorf("unexpected login body: %+v", req)
		}
		if ua := r.Header.Get("User-Agent"); ua != "hyphae-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r-1", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})
	c, _ := newTestClient(t, mux)

	tok, err := c.Login(context.Background(), "alice", "password123", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("expected tok-1, got %q", tok)
	}

	cookies := c.Cookies()
	if len(cookies) != 1 || cookies[0].Name != "refresh_token" || cookies[0].Value != "r-1" {
		t.Fatalf("expected refresh cookie in jar, got %v", cookies)
	}
}

func TestLoginErrorBodyIsRejected(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
	}))

	_, err := c.Login(context.Background(), "alice", "password123", "")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid credentials" {
		t.Fatalf("expected backend message to be preserved, got %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusInternalServerError, ErrTransport},
		{http.StatusBadGateway, ErrTransport},
	}
	for _, tt := range tests {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
		}))
		_, err := c.Refresh(context.Background())
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) || apiErr.Message != "nope" || apiErr.Status != tt.status {
			t.Fatalf("status %d: unexpected error detail %v", tt.status, err)
		}
	}
}

func TestNetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Me(context.Background(), "tok"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestRefreshSendsJarCookies(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("refresh_token")
		if err != nil || ck.Value != "r-9" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-9"})
	}))
	_ = srv

	if _, err := c.Refresh(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without cookie, got %v", err)
	}

	c.SetCookies([]*http.Cookie{{Name: "refresh_token", Value: "r-9"}})
	tok, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok != "tok-9" {
		t.Fatalf("expected tok-9, got %q", tok)
	}

	c.ClearCookies()
	if len(c.Cookies()) != 0 {
		t.Fatalf("expected jar to be empty, got %v", c.Cookies())
	}
}

func TestMeAttachesBearer(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(Profile{ID: "abc123", Username: "owner_dusty", Role: "owner", PinVerified: true})
	}))

	p, err := c.Me(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if p.Username != "owner_dusty" || p.Role != "owner" || !p.PinVerified {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestMalformedBodyIsTransport(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	if _, err := c.Me(context.Background(), "tok"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestAgentLogValidatesType(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"logs":[]}`))
	}))

	raw, err := c.AgentLog(context.Background(), "rootbloom", "tok")
	if err != nil {
		t.Fatalf("agent log: %v", err)
	}
	if gotPath != "/api/rootbloom" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if string(raw) != `{"logs":[]}` {
		t.Fatalf("unexpected body %s", raw)
	}

	if _, err := c.AgentLog(context.Background(), "../auth/me", "tok"); !errors.Is(err, ErrInvalidAgentType) {
		t.Fatalf("expected ErrInvalidAgentType, got %v", err)
	}
}

func TestVerifyPinPostsCode(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/api/auth/verify" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if req.Code != "4321" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid PIN"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.VerifyPin(context.Background(), "tok", "4321"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := c.VerifyPin(context.Background(), "tok", "0000"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := New(Config{BaseURL: u}); err == nil {
			t.Fatalf("expected error for base url %q", u)
		}
	}
}
