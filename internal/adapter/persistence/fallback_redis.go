package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

// RedisFallbackStore keeps the fallback audit list as one JSON string under key
type RedisFallbackStore struct {
	client *redis.Client
	key    string
}

var _ ports.FallbackStore = (*RedisFallbackStore)(nil)

// NewRedisFallbackStore wraps an existing Redis client
func NewRedisFallbackStore(client *redis.Client, key string) *RedisFallbackStore {
	return &RedisFallbackStore{client: client, key: key}
}

// Load returns the stored list; a missing key is an empty list
func (s *RedisFallbackStore) Load(ctx context.Context) ([]domain.AuditLogEntry, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return []domain.AuditLogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fallback: failed to read %s: %w", s.key, err)
	}
	return decodeFallback(raw)
}

// Save replaces the stored list
func (s *RedisFallbackStore) Save(ctx context.Context, entries []domain.AuditLogEntry) error {
	raw, err := encodeFallback(entries)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("fallback: failed to write %s: %w", s.key, err)
	}
	return nil
}
