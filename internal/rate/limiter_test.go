package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, Config{MaxAttempts: max, Window: time.Minute}), mr
}

func TestLimiterFixedWindow(t *testing.T) {
	l, mr := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "login", "10.0.0.1"); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if _, err := l.Hit(ctx, "login", "10.0.0.1"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, "login", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "verify", "10.0.0.1"); err != nil {
		t.Fatalf("scopes must be independent: %v", err)
	}
	if err := l.Check(ctx, "login", "10.0.0.2"); err != nil {
		t.Fatalf("ips must be independent: %v", err)
	}

	if ttl := mr.TTL("pa:rl:login:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}
	mr.FastForward(time.Minute)
	if err := l.Check(ctx, "login", "10.0.0.1"); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestLimiterHitReturnsRunningCount(t *testing.T) {
	l, _ := newTestLimiter(t, 5)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := l.Hit(ctx, "verify", "10.0.0.1")
		if err != nil {
			t.Fatalf("hit: %v", err)
		}
		if got != want {
			t.Fatalf("hit count = %d, want %d", got, want)
		}
	}
	if n, err := l.Attempts(ctx, "verify", "10.0.0.1"); err != nil || n != 3 {
		t.Fatalf("attempts = %d, %v; want 3", n, err)
	}
	if n, _ := l.Attempts(ctx, "verify", "10.0.0.9"); n != 0 {
		t.Fatalf("unseen ip attempts = %d", n)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	mr.Close()
	if err := l.Check(context.Background(), "login", "10.0.0.1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
