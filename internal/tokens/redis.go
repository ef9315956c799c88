package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// gcGrace keeps keys around slightly past their logical expiry so that the
// first verify after expiry still observes and removes them itself.
const gcGrace = time.Minute

// RedisStore keeps the active token set in Redis so that several processes
// can share it. Each token key stores its expiry as unix milliseconds.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	generate   Generator
	now        func() time.Time
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewRedisStore constructs a store over client. Keys are namespaced by prefix.
func NewRedisStore(client redis.UniversalClient, prefix string, defaultTTL time.Duration, generate Generator, now func() time.Time, logger *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "authtoken"
	}
	if generate == nil {
		generate = RandomHex(tokenBytes)
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		generate:   generate,
		now:        now,
		defaultTTL: resolveDuration(defaultTTL, DefaultDuration),
		logger:     logger,
	}
}

func (s *RedisStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}

// Issue writes a new token with SETNX so an existing token is never replaced.
func (s *RedisStore) Issue(ctx context.Context, duration time.Duration) (string, error) {
	duration = resolveDuration(duration, s.defaultTTL)

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := s.generate()
		if err != nil {
			return "", err
		}
		if token == "" {
			continue
		}

		expiresAt := s.now().Add(duration)
		stored, err := s.client.SetNX(ctx, s.key(token), expiresAt.UnixMilli(), duration+gcGrace).Result()
		if err != nil {
			return "", fmt.Errorf("tokens: store token: %w", err)
		}
		if stored {
			return token, nil
		}
	}
	return "", ErrTokenCollision
}

// Verify reports whether token is active. Redis failures fail closed.
func (s *RedisStore) Verify(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	key := s.key(token)
	expiresAtMillis, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.ErrorContext(ctx, "token lookup failed", "store", "redis", "error", err)
		}
		return false
	}

	if s.now().UnixMilli() > expiresAtMillis {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.logger.ErrorContext(ctx, "failed to drop expired token", "store", "redis", "error", err)
		}
		return false
	}
	return true
}

// Revoke deletes token from Redis.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("tokens: revoke token: %w", err)
	}
	return nil
}
