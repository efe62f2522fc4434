package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/config"
	"github.com/bryan-buckman/sftu/internal/model"
)

const cacheKeyPrefix = "sftu:session:"

type cachedSession struct {
	Session model.Session `json:"session"`
	User    model.User    `json:"user"`
}

// RedisCache is a read-through Lookup cache. Cache failures are logged and
// the inner Lookup answers.
type RedisCache struct {
	client redis.UniversalClient
	inner  Lookup
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisCache wraps inner with a cache entry lifetime of at most ttl.
func NewRedisCache(client redis.UniversalClient, inner Lookup, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, inner: inner, ttl: ttl, logger: logger.Named("session_cache"), now: time.Now}
}

// OpenRedis connects to the configured Redis server and verifies it answers.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{cfg.Addr},
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func cacheKey(token string) string {
	return cacheKeyPrefix + token
}

// GetSession implements Lookup.
func (c *RedisCache) GetSession(ctx context.Context, token string) (*model.Session, *model.User, error) {
	raw, err := c.client.Get(ctx, cacheKey(token)).Bytes()
	switch {
	case err == nil:
		var cs cachedSession
		if err := json.Unmarshal(raw, &cs); err == nil {
			return &cs.Session, &cs.User, nil
		}
		c.logger.Warn("discarding malformed cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("session cache read failed", zap.Error(err))
	}

	s, u, err := c.inner.GetSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	c.store(ctx, token, s, u)
	return s, u, nil
}

func (c *RedisCache) store(ctx context.Context, token string, s *model.Session, u *model.User) {
	ttl := c.ttl
	if remaining := s.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(cachedSession{Session: *s, User: *u})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(token), data, ttl).Err(); err != nil {
		c.logger.Warn("session cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached entry for token.
func (c *RedisCache) Invalidate(ctx context.Context, token string) error {
	return c.client.Del(ctx, cacheKey(token)).Err()
}
