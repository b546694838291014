package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter counts failed PIN attempts per device.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "hyphae"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckPin returns ErrRateLimited when the failure budget is already spent.
func (l *Limiter) CheckPin(ctx context.Context, deviceID string) error {
	count, err := l.redis.Get(ctx, l.pinKey(deviceID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// IncrementPin records a failed attempt and reports ErrRateLimited when this
// failure exhausts the budget.
func (l *Limiter) IncrementPin(ctx context.Context, deviceID string) error {
	key := l.pinKey(deviceID)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// ResetPin clears the failure counter after a successful verification.
func (l *Limiter) ResetPin(ctx context.Context, deviceID string) error {
	if err := l.redis.Del(ctx, l.pinKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) pinKey(deviceID string) string {
	return l.config.Prefix + ":pin:" + deviceID
}
