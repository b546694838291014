package hyphae

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hyphae-os/hyphae/api"
	"github.com/hyphae-os/hyphae/internal/audit"
	"github.com/hyphae-os/hyphae/internal/flows"
	"github.com/hyphae-os/hyphae/internal/rate"
	"github.com/hyphae-os/hyphae/session"
)

// Engine is the credential verifier. It is the only component that creates,
// upgrades or clears the session.
//
// Store subscribers run while the engine holds its commit lock, so they must
// not call Login, VerifyPin, Logout or Restore synchronously.
type Engine struct {
	config      Config
	mode        Mode
	device      Device
	deviceID    string
	store       *session.Store
	credentials session.CredentialStore
	backend     backend
	client      *api.Client
	limiter     *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time

	// mu serializes store writes with generation checks. generation counts
	// login, restore and logout starts; a completion holding an older value
	// is stale.
	mu         sync.Mutex
	generation uint64

	revocations sync.WaitGroup
	closed      atomic.Bool
}

// Close waits for background revocations and flushes the audit dispatcher,
// giving the sink at most API.Timeout. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.revocations.Wait()
	if e.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config.API.Timeout)
	defer cancel()
	if err := e.audit.Close(ctx); err != nil {
		e.logger.Warn("hyphae: audit flush incomplete", "dropped", e.audit.Dropped(), "error", err)
	}
}

// Sessions returns the read-only view of the session store.
func (e *Engine) Sessions() session.Reader {
	return e.store
}

// Device returns the device description the engine was built with.
func (e *Engine) Device() Device {
	return e.device
}

// DeviceID returns the fingerprint stored on every session.
func (e *Engine) DeviceID() string {
	return e.deviceID
}

// Mode reports which backend verifies credentials.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Client returns the REST client, or nil in local mode without an API BaseURL.
func (e *Engine) Client() *api.Client {
	return e.client
}

// AuditDropped returns how many audit events never reached the sink.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and histogram buckets. With
// metrics disabled it returns empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
OPERATIONS
====================================
*/

// Login verifies username and password and, on success, replaces the session
// with a new one that still needs the PIN.
//
// Login returns ErrInvalidInput when either field is too short,
// ErrInvalidCredentials when the backend rejects them, an error matching
// ErrTransport when the backend cannot be reached, and ErrLoginSuperseded when
// a newer Login or a Logout started while this one was in flight. In every
// failure case the store is left as it was.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	if e == nil || e.backend == nil {
		return ErrEngineNotReady
	}
	_, err := flows.RunLogin(ctx, username, password, e.loginDeps())
	return err
}

// VerifyPin completes the second factor for the current session. A session
// that is already verified makes this a successful no-op.
//
// pin must be exactly four ASCII digits. Anything else, "abcd" included, is
// rejected with ErrPinMalformed before the backend or the attempt limiter is
// consulted. The pin package entry buffer only ever submits digits.
func (e *Engine) VerifyPin(ctx context.Context, pin string) error {
	if e == nil || e.backend == nil {
		return ErrEngineNotReady
	}
	_, err := flows.RunVerifyPin(ctx, pin, e.pinDeps())
	return err
}

// Restore rebuilds the session from the credential persisted for this device.
// Any failure leaves the store absent and returns an error wrapping
// ErrSessionRestore, which callers should log rather than show.
func (e *Engine) Restore(ctx context.Context) error {
	if e == nil || e.backend == nil {
		return ErrEngineNotReady
	}
	_, err := flows.RunRestore(ctx, e.restoreDeps())
	if err != nil {
		e.logger.InfoContext(ctx, "hyphae: silent restore skipped", "device_id", e.deviceID, "error", err)
	}
	return err
}

// Logout clears the session immediately and is safe to call with no session.
// In Remote mode the cookie jar is emptied before Logout returns. The
// persisted credential is deleted and the backend is told in the background;
// neither outcome is reported to the caller.
func (e *Engine) Logout(ctx context.Context) {
	if e == nil || e.store == nil {
		return
	}

	var revoke func(ctx context.Context) error
	e.mu.Lock()
	e.generation++
	prev := e.store.Get()
	e.store.Set(nil)
	if e.backend != nil {
		revoke = e.backend.detach(prev)
	}
	e.mu.Unlock()

	if prev != nil {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, prev, nil, nil)
	}

	if e.credentials != nil {
		if err := e.credentials.Delete(ctx, e.deviceID); err != nil {
			e.logger.WarnContext(ctx, "hyphae: credential delete failed", "device_id", e.deviceID, "error", err)
		}
	}

	if revoke == nil || e.closed.Load() {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.API.Timeout)
	e.revocations.Add(1)
	go func() {
		defer e.revocations.Done()
		defer cancel()
		if err := revoke(rctx); err != nil {
			e.metricInc(MetricRevokeFailure)
			e.emitAudit(rctx, auditEventRevokeFailure, false, prev, err, nil)
			e.logger.WarnContext(rctx, "hyphae: backend logout failed", "error", err)
		}
	}()
}

/*
====================================
COMMIT HELPERS
====================================
*/

func (e *Engine) begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return e.generation
}

func (e *Engine) commitGeneration(generation uint64, s *session.Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation {
		return false
	}
	e.store.Set(s)
	return true
}

func (e *Engine) commitIfCurrent(sessionID string, s *session.Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.store.Get()
	if current == nil || current.ID != sessionID {
		return false
	}
	e.store.Set(s)
	return true
}

func (e *Engine) persist(ctx context.Context, s *session.Session) error {
	if e.credentials == nil {
		return nil
	}
	if err := e.credentials.Save(ctx, e.backend.credential(s), e.config.Session.CredentialTTL); err != nil {
		e.metricInc(MetricCredentialPersistFailure)
		return err
	}
	return nil
}

/*
====================================
FLOW WIRING
====================================
*/

func (e *Engine) hooks() flows.Hooks {
	return flows.Hooks{
		Now:          e.now,
		NewSessionID: func() (string, error) { return uuid.NewString(), nil },
		MetricInc:    func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:    e.emitAudit,
		Warn: func(msg string, args ...any) {
			e.logger.Warn(msg, args...)
		},
	}
}

func (e *Engine) loginDeps() flows.LoginDeps {
	return flows.LoginDeps{
		Hooks:             e.hooks(),
		MinUsernameLength: e.config.Session.MinUsernameLength,
		MinPasswordLength: e.config.Session.MinPasswordLength,
		DeviceID:          e.deviceID,
		Authenticate: func(ctx context.Context, username, password string) (flows.Authenticated, error) {
			start := time.Now()
			defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
			return e.backend.authenticate(ctx, username, password)
		},
		Begin:   e.begin,
		Commit:  e.commitGeneration,
		Persist: e.persist,
		Metrics: flows.LoginMetrics{
			LoginSuccess:    int(MetricLoginSuccess),
			LoginFailure:    int(MetricLoginFailure),
			LoginSuperseded: int(MetricLoginSuperseded),
			TransportError:  int(MetricTransportError),
			SessionCreated:  int(MetricSessionCreated),
		},
		Events: flows.LoginEvents{
			LoginSuccess:    auditEventLoginSuccess,
			LoginFailure:    auditEventLoginFailure,
			LoginSuperseded: auditEventLoginSuperseded,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidInput:       ErrInvalidInput,
			InvalidCredentials: ErrInvalidCredentials,
			LoginSuperseded:    ErrLoginSuperseded,
			Transport:          ErrTransport,
		},
	}
}

func (e *Engine) pinDeps() flows.PinDeps {
	deps := flows.PinDeps{
		Hooks:   e.hooks(),
		Current: e.store.Get,
		CheckPin: func(ctx context.Context, s *session.Session, pin string) error {
			start := time.Now()
			defer func() { e.metrics.Observe(MetricPinLatency, time.Since(start)) }()
			return e.backend.checkPin(ctx, s, pin)
		},
		Commit: e.commitIfCurrent,
		Metrics: flows.PinMetrics{
			PinSuccess:     int(MetricPinSuccess),
			PinFailure:     int(MetricPinFailure),
			PinRateLimited: int(MetricPinRateLimited),
			TransportError: int(MetricTransportError),
		},
		Events: flows.PinEvents{
			PinSuccess:     auditEventPinSuccess,
			PinFailure:     auditEventPinFailure,
			PinRateLimited: auditEventPinRateLimited,
		},
		Errors: flows.PinErrors{
			EngineNotReady: ErrEngineNotReady,
			NoSession:      ErrNoSession,
			PinMalformed:   ErrPinMalformed,
			PinInvalid:     ErrPinInvalid,
			PinRateLimited: ErrPinRateLimited,
			SessionChanged: ErrSessionChanged,
			Transport:      ErrTransport,
		},
	}
	if e.limiter != nil {
		deps.CheckRate = e.limiter.CheckPin
		deps.IncrementRate = e.limiter.IncrementPin
		deps.ResetRate = e.limiter.ResetPin
	}
	return deps
}

func (e *Engine) restoreDeps() flows.RestoreDeps {
	deps := flows.RestoreDeps{
		Hooks:    e.hooks(),
		DeviceID: e.deviceID,
		Resume:   e.backend.resume,
		Persist:  e.persist,
		Begin:    e.begin,
		Commit:   e.commitGeneration,
		Metrics: flows.RestoreMetrics{
			RestoreSuccess: int(MetricRestoreSuccess),
			RestoreFailure: int(MetricRestoreFailure),
			SessionCreated: int(MetricSessionCreated),
		},
		Events: flows.RestoreEvents{
			RestoreSuccess: auditEventRestoreSuccess,
			RestoreFailure: auditEventRestoreFailure,
		},
		Errors: flows.RestoreErrors{
			EngineNotReady:     ErrEngineNotReady,
			SessionRestore:     ErrSessionRestore,
			LoginSuperseded:    ErrLoginSuperseded,
			CredentialNotFound: session.ErrCredentialNotFound,
		},
	}
	if e.credentials != nil {
		deps.LoadCredential = e.credentials.Load
		deps.DeleteCredential = e.credentials.Delete
	}
	return deps
}
