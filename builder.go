package hyphae

import (
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyphae-os/hyphae/api"
	"github.com/hyphae-os/hyphae/internal/audit"
	"github.com/hyphae-os/hyphae/internal/rate"
	"github.com/hyphae-os/hyphae/jwt"
	"github.com/hyphae-os/hyphae/session"
)

// Builder assembles an [Engine]. Configure it once and call Build; a Builder
// cannot be reused.
type Builder struct {
	config Config
	device *Device
	redis  redis.UniversalClient

	httpClient  *http.Client
	credentials session.CredentialStore
	auditSink   AuditSink
	logger      *slog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied; Build validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDevice overrides [DefaultDevice].
func (b *Builder) WithDevice(d Device) *Builder {
	b.device = &d
	return b
}

// WithRedis enables the Redis credential store and, when
// Security.MaxPinAttempts is set, the PIN attempt limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the base client for REST calls. It is copied, and a
// cookie jar is attached when it has none.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithCredentialStore overrides the credential store chosen by Build.
func (b *Builder) WithCredentialStore(cs session.CredentialStore) *Builder {
	b.credentials = cs
	return b
}

// WithAuditSink sets where session audit events go. It has no effect unless
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Build falls back to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled overrides Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. It fails when the
// configuration is invalid, when the PIN limiter is enabled without Redis, or
// when the signing key is unusable.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Security.MaxPinAttempts > 0 && b.redis == nil {
		return nil, errors.New("Security MaxPinAttempts requires redis client")
	}

	device := DefaultDevice()
	if b.device != nil {
		device = *b.device
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:   cfg,
		mode:     cfg.Mode,
		device:   device,
		deviceID: device.Fingerprint(),
		store:    session.NewStore(),
		logger:   logger,
		now:      now,
	}

	// -------- REST CLIENT --------
	if strings.TrimSpace(cfg.API.BaseURL) != "" {
		client, err := api.New(api.Config{
			BaseURL:    cfg.API.BaseURL,
			Timeout:    cfg.API.Timeout,
			UserAgent:  cfg.API.UserAgent,
			HTTPClient: b.httpClient,
		})
		if err != nil {
			return nil, err
		}
		engine.client = client
	}

	// -------- BACKEND --------
	switch cfg.Mode {
	case ModeRemote:
		engine.backend = &remoteBackend{client: engine.client, now: now}
	case ModeLocal:
		tokens, err := newLocalTokenManager(cfg.JWT)
		if err != nil {
			return nil, err
		}
		engine.backend = &localBackend{
			tokens:   tokens,
			deviceID: engine.deviceID,
			pinHash:  cfg.Security.LocalPinHash,
			now:      now,
		}
	}

	// -------- CREDENTIAL STORE --------
	switch {
	case b.credentials != nil:
		engine.credentials = b.credentials
	case b.redis != nil:
		store, err := session.NewRedisCredentialStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.SealKey)
		if err != nil {
			return nil, err
		}
		engine.credentials = store
	default:
		engine.credentials = session.NewMemoryCredentialStore()
	}

	if cfg.Security.MaxPinAttempts > 0 {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Session.RedisPrefix,
			MaxAttempts: cfg.Security.MaxPinAttempts,
			Cooldown:    cfg.Security.PinCooldown,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev audit.Event) {
			logger.Debug("hyphae: audit event dropped", "event_type", ev.EventType, "session_id", ev.SessionID)
		},
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

func newLocalTokenManager(cfg JWTConfig) (*jwt.Manager, error) {
	key := cloneBytes(cfg.PrivateKey)
	if cfg.SigningMethod == "hs256" && len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	return jwt.NewManager(jwt.Config{
		TTL:           cfg.TTL,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		PrivateKey:    key,
		PublicKey:     cloneBytes(cfg.PublicKey),
		Issuer:        cfg.Issuer,
		Leeway:        cfg.Leeway,
	})
}
