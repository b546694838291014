package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, max int) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := New(rdb, Config{Prefix: "hy", MaxAttempts: max, Cooldown: time.Minute})
	return l, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestPinLimiterBlocksAfterBudget(t *testing.T) {
	l, _, done := newLimiterTest(t, 3)
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.IncrementPin(ctx, "dev"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if err := l.CheckPin(ctx, "dev"); err != nil {
			t.Fatalf("check after %d failures: %v", i+1, err)
		}
	}
	if err := l.IncrementPin(ctx, "dev"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected third failure to exhaust budget, got %v", err)
	}
	if err := l.CheckPin(ctx, "dev"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected check to be rate limited, got %v", err)
	}
	if err := l.CheckPin(ctx, "dev2"); err != nil {
		t.Fatalf("other device must not be limited: %v", err)
	}
}

func TestPinLimiterWindowExpires(t *testing.T) {
	l, mr, done := newLimiterTest(t, 1)
	defer done()
	ctx := context.Background()

	_ = l.IncrementPin(ctx, "dev")
	if err := l.CheckPin(ctx, "dev"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckPin(ctx, "dev"); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestPinLimiterReset(t *testing.T) {
	l, mr, done := newLimiterTest(t, 5)
	defer done()
	ctx := context.Background()

	_ = l.IncrementPin(ctx, "dev")
	if !mr.Exists("hy:pin:dev") {
		t.Fatal("expected counter key")
	}
	if err := l.ResetPin(ctx, "dev"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists("hy:pin:dev") {
		t.Fatal("expected counter key to be removed")
	}
}

func TestPinLimiterRedisDown(t *testing.T) {
	l, mr, done := newLimiterTest(t, 5)
	defer done()
	mr.Close()

	if err := l.CheckPin(context.Background(), "dev"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
