package hyphae

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hyphae-os/hyphae/session"
)

// fakeBackend is a minimal HyphaeOS REST backend. Tokens are "tok-<email>",
// the refresh cookie is "rt=<email>" and the correct PIN is 4321.
type fakeBackend struct {
	mu       sync.Mutex
	verified map[string]bool
	roles    map[string]string

	// hold, when set, blocks logins for the named user until released.
	hold     map[string]chan struct{}
	received chan string

	logouts   atomic.Int32
	loggedOut []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		verified: map[string]bool{},
		roles:    map[string]string{},
		hold:     map[string]chan struct{}{},
		received: make(chan string, 16),
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.received <- body.Email

		f.mu.Lock()
		gate := f.hold[body.Email]
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}

		if body.Password == "wrongpass" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "rt", Value: body.Email, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok-" + body.Email})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		user, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer tok-")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no token"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "id-" + user,
			"username":    user,
			"email":       user + "@hyphae.test",
			"role":        f.roles[user],
			"pinVerified": f.verified[user],
		})
	})
	mux.HandleFunc("POST /api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer tok-")
		var body struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Code != "4321" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid code"})
			return
		}
		f.mu.Lock()
		f.verified[user] = true
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("rt")
		if err != nil || c.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no refresh credential"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-" + c.Value})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logouts.Add(1)
		var names []string
		for _, c := range r.Cookies() {
			names = append(names, c.Name+"="+c.Value)
		}
		f.mu.Lock()
		f.loggedOut = append(f.loggedOut, strings.Join(names, ";"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testRemoteConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeRemote
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 2 * time.Second
	cfg.Metrics.Enabled = true
	return cfg
}

func newRemoteEngine(t *testing.T, baseURL string, creds session.CredentialStore) *Engine {
	t.Helper()
	b := New().WithConfig(testRemoteConfig(baseURL)).WithDevice(testDevice)
	if creds != nil {
		b = b.WithCredentialStore(creds)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestRemoteLoginAndPin(t *testing.T) {
	fb := newFakeBackend()
	fb.roles["dusty"] = "owner"
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	e := newRemoteEngine(t, srv.URL, nil)
	ctx := context.Background()

	if err := e.Login(ctx, "dusty", "password123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s := e.Sessions().Get()
	if s.Identity.Role != session.RoleOwner || s.Identity.UserID != "id-dusty" || s.PinVerified {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Token != "tok-dusty" {
		t.Fatalf("token = %q", s.Token)
	}

	if err := e.VerifyPin(ctx, "1111"); !errors.Is(err, ErrPinInvalid) {
		t.Fatalf("expected ErrPinInvalid, got %v", err)
	}
	if UserMessage(ErrPinInvalid) != MessagePinInvalid {
		t.Fatal("unexpected pin message")
	}
	if err := e.VerifyPin(ctx, "4321"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !e.Sessions().Get().PinVerified {
		t.Fatal("expected verified session")
	}
}

func TestRemoteRoleFallsBackToNamingConvention(t *testing.T) {
	fb := newFakeBackend()
	fb.roles["sys_probe"] = "superuser"
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	e := newRemoteEngine(t, srv.URL, nil)
	if err := e.Login(context.Background(), "sys_probe", "password123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := e.Sessions().Get().Identity.Role; got != session.RoleSystemAgent {
		t.Fatalf("role = %q, want system", got)
	}
}

func TestRemoteLoginRejected(t *testing.T) {
	srv := httptest.NewServer(newFakeBackend().handler())
	defer srv.Close()

	e := newRemoteEngine(t, srv.URL, nil)
	err := e.Login(context.Background(), "alice", "wrongpass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Fatal("rejection must not look like a transport failure")
	}
	if UserMessage(err) != MessageAuth {
		t.Fatalf("message = %q", UserMessage(err))
	}
	if e.Sessions().Get() != nil {
		t.Fatal("store must stay absent")
	}
}

func TestRemoteLoginTransportFailure(t *testing.T) {
	srv := httptest.NewServer(newFakeBackend().handler())
	url := srv.URL
	srv.Close()

	e := newRemoteEngine(t, url, nil)
	err := e.Login(context.Background(), "alice", "password123")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if UserMessage(err) != MessageNetwork {
		t.Fatalf("message = %q", UserMessage(err))
	}
	if got := e.MetricsSnapshot().Counters[MetricTransportError]; got != 1 {
		t.Fatalf("transport counter = %d", got)
	}
}

func TestRemoteLoginSupersededByNewerLogin(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	fb.hold["alice"] = release
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	e := newRemoteEngine(t, srv.URL, nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- e.Login(ctx, "alice", "password123") }()
	if got := <-fb.received; got != "alice" {
		t.Fatalf("unexpected first request %q", got)
	}

	if err := e.Login(ctx, "bob", "password123"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	<-fb.received
	close(release)

	if err := <-first; !errors.Is(err, ErrLoginSuperseded) {
		t.Fatalf("expected ErrLoginSuperseded, got %v", err)
	}
	if got := e.Sessions().Get(); got == nil || got.Identity.Username != "bob" {
		t.Fatalf("newest login must win, got %+v", got)
	}
}

func TestRemoteLoginSupersededByLogout(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	fb.hold["alice"] = release
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	e := newRemoteEngine(t, srv.URL, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.Login(ctx, "alice", "password123") }()
	<-fb.received

	e.Logout(ctx)
	close(release)

	if err := <-done; !errors.Is(err, ErrLoginSuperseded) {
		t.Fatalf("expected ErrLoginSuperseded, got %v", err)
	}
	if e.Sessions().Get() != nil {
		t.Fatal("logout must win over the in-flight login")
	}
}

func TestRemoteLogoutRevokesInBackground(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	e, err := New().WithConfig(testRemoteConfig(srv.URL)).WithDevice(testDevice).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()
	_ = e.Login(ctx, "alice", "password123")

	e.Logout(ctx)
	if e.Sessions().Get() != nil {
		t.Fatal("logout must clear synchronously")
	}
	e.Close()
	if got := fb.logouts.Load(); got != 1 {
		t.Fatalf("expected one backend logout, got %d", got)
	}
}

func TestRemoteLogoutClearsCookieJar(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	e, err := New().WithConfig(testRemoteConfig(srv.URL)).WithDevice(testDevice).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()
	if err := e.Login(ctx, "alice", "password123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(e.Client().Cookies()) == 0 {
		t.Fatal("expected refresh cookie after login")
	}

	e.Logout(ctx)
	if got := e.Client().Cookies(); len(got) != 0 {
		t.Fatalf("jar must be empty once Logout returns, got %v", got)
	}

	if err := e.Login(ctx, "bob", "password123"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	e.Close()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.loggedOut) != 1 || fb.loggedOut[0] != "rt=alice" {
		t.Fatalf("backend logout must carry only the old cookie, got %q", fb.loggedOut)
	}
	if got := e.Client().Cookies(); len(got) != 1 || got[0].Value != "bob" {
		t.Fatalf("new session cookie must survive, got %v", got)
	}
}

func TestRemoteLogoutBackendDownIsSilent(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())

	e, err := New().WithConfig(testRemoteConfig(srv.URL)).WithDevice(testDevice).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_ = e.Login(context.Background(), "alice", "password123")
	srv.Close()

	e.Logout(context.Background())
	e.Close()
	if e.Sessions().Get() != nil {
		t.Fatal("store must be absent")
	}
	if got := e.MetricsSnapshot().Counters[MetricRevokeFailure]; got != 1 {
		t.Fatalf("revoke failure counter = %d", got)
	}
}

func TestRemoteRestoreThroughRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	cfg := testRemoteConfig(srv.URL)
	cfg.Session.SealKey = []byte("abcdefghijklmnopqrstuvwxyz012345")
	ctx := context.Background()

	first, err := New().WithConfig(cfg).WithDevice(testDevice).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := first.Login(ctx, "alice", "password123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := first.VerifyPin(ctx, "4321"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	first.Close()

	if !mr.Exists("hyphae:cred:" + testDevice.Fingerprint()) {
		t.Fatal("expected credential in redis")
	}

	second, err := New().WithConfig(cfg).WithDevice(testDevice).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer second.Close()

	if err := second.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	s := second.Sessions().Get()
	if s == nil || s.Identity.Username != "alice" || !s.PinVerified {
		t.Fatalf("unexpected restored session: %+v", s)
	}
}

func TestRemoteRestoreRejectedLeavesStoreAbsent(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	creds := session.NewMemoryCredentialStore()
	ctx := context.Background()
	_ = creds.Save(ctx, &session.Credential{DeviceID: testDevice.Fingerprint(), Token: "stale"}, time.Hour)

	e := newRemoteEngine(t, srv.URL, creds)
	err := e.Restore(ctx)
	if !errors.Is(err, ErrSessionRestore) {
		t.Fatalf("expected ErrSessionRestore, got %v", err)
	}
	if e.Sessions().Get() != nil {
		t.Fatal("store must stay absent")
	}
	if _, err := creds.Load(ctx, testDevice.Fingerprint()); !errors.Is(err, session.ErrCredentialNotFound) {
		t.Fatalf("stale credential should be deleted, got %v", err)
	}
}

func TestRemotePinLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	srv := httptest.NewServer(newFakeBackend().handler())
	defer srv.Close()

	cfg := testRemoteConfig(srv.URL)
	cfg.Security.MaxPinAttempts = 2
	cfg.Security.PinCooldown = time.Minute

	e, err := New().WithConfig(cfg).WithDevice(testDevice).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	ctx := context.Background()
	_ = e.Login(ctx, "alice", "password123")

	if err := e.VerifyPin(ctx, "0000"); !errors.Is(err, ErrPinInvalid) {
		t.Fatalf("first failure: %v", err)
	}
	if err := e.VerifyPin(ctx, "0000"); !errors.Is(err, ErrPinRateLimited) {
		t.Fatalf("second failure should exhaust budget: %v", err)
	}
	if err := e.VerifyPin(ctx, "4321"); !errors.Is(err, ErrPinRateLimited) {
		t.Fatalf("correct pin must still be limited: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := e.VerifyPin(ctx, "4321"); err != nil {
		t.Fatalf("after cooldown: %v", err)
	}
}
