package hyphae

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyphae-os/hyphae/internal/pinhash"
)

// Config is the full engine configuration. Start from [DefaultConfig] and
// override what you need, or load it with [LoadConfig].
type Config struct {
	Mode     Mode
	API      APIConfig
	JWT      JWTConfig
	Session  SessionConfig
	Security SecurityConfig
	Feed     FeedConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig configures the REST client. BaseURL is required in ModeRemote and
// optional in ModeLocal, where it only serves panel data.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures locally issued session tokens (ModeLocal only). An
// empty PrivateKey with "hs256" makes Build generate an ephemeral key, so
// sessions do not survive a restart.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix       string
	CredentialTTL     time.Duration
	SealKey           []byte // 32 bytes enables at-rest sealing in Redis
	MinUsernameLength int
	MinPasswordLength int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig bounds second-factor attempts. MaxPinAttempts of zero
// disables the limiter; a positive value requires a Redis client.
//
// LocalPinHash is an Argon2id PHC string. When set, ModeLocal accepts only the
// matching PIN instead of any four digits.
type SecurityConfig struct {
	MaxPinAttempts int
	PinCooldown    time.Duration
	LocalPinHash   string
}

/*
====================================
FEED, AUDIT, METRICS
====================================
*/

type FeedConfig struct {
	URL              string
	Capacity         int
	HandshakeTimeout time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a local-mode configuration that passes [Config.Validate].
func DefaultConfig() Config {
	return Config{
		Mode: ModeLocal,
		API: APIConfig{
			Timeout:   10 * time.Second,
			UserAgent: "hyphae-client",
		},
		JWT: JWTConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "hyphae",
		},
		Session: SessionConfig{
			RedisPrefix:       "hyphae",
			CredentialTTL:     7 * 24 * time.Hour,
			MinUsernameLength: 3,
			MinPasswordLength: 6,
		},
		Security: SecurityConfig{
			MaxPinAttempts: 0,
			PinCooldown:    5 * time.Minute,
		},
		Feed: FeedConfig{
			Capacity:         50,
			HandshakeTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Session.SealKey = cloneBytes(cfg.Session.SealKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem it finds.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal:
	case ModeRemote:
		if strings.TrimSpace(c.API.BaseURL) == "" {
			return errors.New("remote mode requires API BaseURL")
		}
	default:
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}

	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}

	if c.Mode == ModeLocal {
		if c.JWT.TTL <= 0 {
			return errors.New("JWT TTL must be > 0")
		}
		switch c.JWT.SigningMethod {
		case "hs256":
		case "ed25519":
			if len(c.JWT.PrivateKey) == 0 {
				return errors.New("ed25519 requires PrivateKey")
			}
		default:
			return errors.New("unsupported JWT signing method")
		}
		if c.JWT.Leeway < 0 {
			return errors.New("JWT Leeway must be >= 0")
		}
	}

	if c.Session.CredentialTTL <= 0 {
		return errors.New("Session CredentialTTL must be > 0")
	}
	if c.Session.MinUsernameLength <= 0 || c.Session.MinPasswordLength <= 0 {
		return errors.New("Session minimum credential lengths must be > 0")
	}
	if n := len(c.Session.SealKey); n != 0 && n != 32 {
		return errors.New("Session SealKey must be 32 bytes")
	}

	if c.Security.MaxPinAttempts < 0 {
		return errors.New("Security MaxPinAttempts must be >= 0")
	}
	if c.Security.MaxPinAttempts > 0 && c.Security.PinCooldown <= 0 {
		return errors.New("Security PinCooldown must be > 0 when MaxPinAttempts is set")
	}
	if c.Security.LocalPinHash != "" {
		if err := pinhash.Check(c.Security.LocalPinHash); err != nil {
			return fmt.Errorf("Security LocalPinHash: %w", err)
		}
	}

	if c.Feed.Capacity <= 0 {
		return errors.New("Feed Capacity must be > 0")
	}
	if c.Feed.HandshakeTimeout < 0 {
		return errors.New("Feed HandshakeTimeout must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

/*
====================================
YAML LOADING
====================================
*/

type fileConfig struct {
	Mode string `yaml:"mode"`
	API  struct {
		BaseURL   string        `yaml:"base_url"`
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"api"`
	JWT struct {
		TTL           time.Duration `yaml:"ttl"`
		SigningMethod string        `yaml:"signing_method"`
		PrivateKey    string        `yaml:"private_key"` // base64
		PublicKey     string        `yaml:"public_key"`  // base64
		Issuer        string        `yaml:"issuer"`
		Leeway        time.Duration `yaml:"leeway"`
	} `yaml:"jwt"`
	Session struct {
		RedisPrefix       string        `yaml:"redis_prefix"`
		CredentialTTL     time.Duration `yaml:"credential_ttl"`
		SealKey           string        `yaml:"seal_key"` // base64
		MinUsernameLength int           `yaml:"min_username_length"`
		MinPasswordLength int           `yaml:"min_password_length"`
	} `yaml:"session"`
	Security struct {
		MaxPinAttempts int           `yaml:"max_pin_attempts"`
		PinCooldown    time.Duration `yaml:"pin_cooldown"`
		LocalPinHash   string        `yaml:"local_pin_hash"`
	} `yaml:"security"`
	Feed struct {
		URL              string        `yaml:"url"`
		Capacity         int           `yaml:"capacity"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	} `yaml:"feed"`
	// Booleans are pointers so an absent key keeps its default.
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize int   `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled           *bool `yaml:"enabled"`
		LatencyHistograms *bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`
}

// LoadConfig reads a YAML file and overlays it on [DefaultConfig]. Absent keys
// and zero values in the file keep the default; booleans are applied whenever
// they are present. The result is validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig is [LoadConfig] for an in-memory document.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig()
	setString(fc.Mode, (*string)(&cfg.Mode))

	setString(fc.API.BaseURL, &cfg.API.BaseURL)
	setDuration(fc.API.Timeout, &cfg.API.Timeout)
	setString(fc.API.UserAgent, &cfg.API.UserAgent)

	setDuration(fc.JWT.TTL, &cfg.JWT.TTL)
	setString(fc.JWT.SigningMethod, &cfg.JWT.SigningMethod)
	setString(fc.JWT.Issuer, &cfg.JWT.Issuer)
	setDuration(fc.JWT.Leeway, &cfg.JWT.Leeway)

	setString(fc.Session.RedisPrefix, &cfg.Session.RedisPrefix)
	setDuration(fc.Session.CredentialTTL, &cfg.Session.CredentialTTL)
	setInt(fc.Session.MinUsernameLength, &cfg.Session.MinUsernameLength)
	setInt(fc.Session.MinPasswordLength, &cfg.Session.MinPasswordLength)

	setInt(fc.Security.MaxPinAttempts, &cfg.Security.MaxPinAttempts)
	setDuration(fc.Security.PinCooldown, &cfg.Security.PinCooldown)
	setString(fc.Security.LocalPinHash, &cfg.Security.LocalPinHash)

	setString(fc.Feed.URL, &cfg.Feed.URL)
	setInt(fc.Feed.Capacity, &cfg.Feed.Capacity)
	setDuration(fc.Feed.HandshakeTimeout, &cfg.Feed.HandshakeTimeout)

	setBool(fc.Audit.Enabled, &cfg.Audit.Enabled)
	setInt(fc.Audit.BufferSize, &cfg.Audit.BufferSize)
	setBool(fc.Audit.DropIfFull, &cfg.Audit.DropIfFull)

	setBool(fc.Metrics.Enabled, &cfg.Metrics.Enabled)
	setBool(fc.Metrics.LatencyHistograms, &cfg.Metrics.EnableLatencyHistograms)

	keys := []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"jwt.private_key", fc.JWT.PrivateKey, &cfg.JWT.PrivateKey},
		{"jwt.public_key", fc.JWT.PublicKey, &cfg.JWT.PublicKey},
		{"session.seal_key", fc.Session.SealKey, &cfg.Session.SealKey},
	}
	for _, k := range keys {
		if k.in == "" {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(k.in)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", k.name, err)
		}
		*k.out = b
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setString(in string, out *string) {
	if v := strings.TrimSpace(in); v != "" {
		*out = v
	}
}

func setDuration(in time.Duration, out *time.Duration) {
	if in != 0 {
		*out = in
	}
}

func setInt(in int, out *int) {
	if in != 0 {
		*out = in
	}
}

func setBool(in *bool, out *bool) {
	if in != nil {
		*out = *in
	}
}
