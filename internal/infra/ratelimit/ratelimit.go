// Package ratelimit provides Redis-backed and in-process request rate limiting.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"github.com/devicehub/devicehub/internal/infra/logger"
)

// Service decides whether a keyed caller may proceed
type Service interface {
	// Allow counts one attempt for key and reports whether it is within limit per window
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Block rejects key for duration
	Block(ctx context.Context, key string, duration time.Duration, reason string) error
	// IsBlocked reports whether key is currently blocked
	IsBlocked(ctx context.Context, key string) (bool, error)
}

// Config configures rate limiting
type Config struct {
	Enabled  bool
	RedisURL string
}

// NewService returns a Redis-backed limiter when a Redis URL is configured, an
// in-process limiter when enabled without Redis, and a no-op limiter otherwise.
func NewService(ctx context.Context, config Config, log logger.Logger) (Service, error) {
	if !config.Enabled {
		log.Info(ctx, "Rate limiting disabled", nil)
		return noopService{}, nil
	}
	if config.RedisURL == "" {
		log.Info(ctx, "Rate limiting using in-process limiter", nil)
		return NewLocalService(time.Minute), nil
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info(ctx, "Rate limiting using Redis", nil)
	return NewRedisService(client, log), nil
}

// redisService implements Service with Redis counters
type redisService struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisService wraps an existing Redis client
func NewRedisService(client *redis.Client, log logger.Logger) Service {
	return &redisService{client: client, logger: log}
}

func (s *redisService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return true, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	// first hit opens the window
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return true, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func (s *redisService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := "blocked:" + key
	pipeline := s.client.TxPipeline()
	pipeline.HSet(ctx, blockKey, map[string]interface{}{
		"reason":     reason,
		"blocked_at": time.Now().Unix(),
	})
	pipeline.Expire(ctx, blockKey, duration)
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("failed to block key: %w", err)
	}
	return nil
}

func (s *redisService) IsBlocked(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, "blocked:"+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check block status: %w", err)
	}
	return n > 0, nil
}

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalService implements Service with per-key token buckets held in memory
type LocalService struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	blocked map[string]time.Time
	maxAge  time.Duration
	now     func() time.Time
}

// NewLocalService creates an in-process limiter; idle keys older than maxAge are dropped
func NewLocalService(maxAge time.Duration) *LocalService {
	return &LocalService{
		entries: make(map[string]*localEntry),
		blocked: make(map[string]time.Time),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (s *LocalService) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictStale(now)

	e, ok := s.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		s.entries[key] = e
	}
	e.lastAccess = now
	return e.limiter.AllowN(now, 1), nil
}

func (s *LocalService) Block(_ context.Context, key string, duration time.Duration, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[key] = s.now().Add(duration)
	return nil
}

func (s *LocalService) IsBlocked(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blocked[key]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.blocked, key)
		return false, nil
	}
	return true, nil
}

// Len returns the number of tracked keys
func (s *LocalService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *LocalService) evictStale(now time.Time) {
	for k, e := range s.entries {
		if now.Sub(e.lastAccess) > s.maxAge {
			delete(s.entries, k)
		}
	}
}

type noopService struct{}

func (noopService) Allow(context.Context, string, int, time.Duration) (bool, error) { return true, nil }
func (noopService) Block(context.Context, string, time.Duration, string) error      { return nil }
func (noopService) IsBlocked(context.Context, string) (bool, error)                 { return false, nil }
