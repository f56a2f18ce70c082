// Package ratelimit enforces a per-client request quota using a
// fixed window counter in Redis. The counter key carries a TTL equal
// to the window, so quotas reset without any sweeper.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

const keyPrefix = "gitrag:ratelimit:"

// Limiter counts requests per client identity inside a fixed window.
type Limiter struct {
	client *redis.Client
	quota  int64
	window time.Duration
	logger *slog.Logger
}

// New creates a Limiter allowing quota requests per window per key.
func New(client *redis.Client, quota int, window time.Duration, logger *slog.Logger) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if quota <= 0 {
		return nil, fmt.Errorf("%w: rate limit quota must be positive, got %d", domain.ErrConfiguration, quota)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: rate limit window must be positive, got %s", domain.ErrConfiguration, window)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{client: client, quota: int64(quota), window: window, logger: logger}, nil
}

// Allow records one request for key and returns ErrRateLimited when
// the window's quota is exhausted. The increment and the TTL are set
// atomically in one pipeline so a crash between them cannot leave an
// immortal counter. Redis unavailability fails open: an overloaded
// limiter should not take the service down with it.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: rate limit key must not be empty", domain.ErrValidation)
	}

	rkey := keyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.ExpireNX(ctx, rkey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed, allowing request", "key", key, "error", err)
		return nil
	}

	if count := incr.Val(); count > l.quota {
		l.logger.Info("rate limit exceeded", "key", key, "count", count, "quota", l.quota)
		return fmt.Errorf("%w: %d requests in current window exceeds quota %d", domain.ErrRateLimited, count, l.quota)
	}
	return nil
}

// Remaining reports how many requests key has left in the current
// window. Absent counters mean a full quota.
func (l *Limiter) Remaining(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Get(ctx, keyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return l.quota, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading rate limit counter: %w", err)
	}
	remaining := l.quota - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
