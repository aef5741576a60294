package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// MaxAttempts failures are allowed per window; the next check is rejected.
	MaxAttempts int
	Window      time.Duration
	// Prefix namespaces keys. Defaults to "pa".
	Prefix string
}

// Limiter counts failures per scope and client IP using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "pa"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when ip has already used its failure budget
// for scope in the current window.
func (l *Limiter) Check(ctx context.Context, scope, ip string) error {
	count, err := l.Attempts(ctx, scope, ip)
	if err != nil {
		return err
	}
	if count >= l.config.MaxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Hit records one failure and returns the window's running count.
func (l *Limiter) Hit(ctx context.Context, scope, ip string) (int64, error) {
	return l.incrementWithTTL(ctx, l.key(scope, ip), l.config.Window)
}

// Attempts returns the current counter. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, scope, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(scope, ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(scope, ip string) string {
	return l.config.Prefix + ":rl:" + scope + ":" + ip
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
