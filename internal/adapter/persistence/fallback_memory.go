package persistence

import (
	"context"
	"sync"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

// MemoryFallbackStore keeps the fallback list in process memory. Contents are lost on exit.
type MemoryFallbackStore struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
}

var _ ports.FallbackStore = (*MemoryFallbackStore)(nil)

// NewMemoryFallbackStore creates a store seeded with entries
func NewMemoryFallbackStore(entries ...domain.AuditLogEntry) *MemoryFallbackStore {
	return &MemoryFallbackStore{entries: append([]domain.AuditLogEntry{}, entries...)}
}

func (s *MemoryFallbackStore) Load(_ context.Context) ([]domain.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLogEntry{}, s.entries...), nil
}

func (s *MemoryFallbackStore) Save(_ context.Context, entries []domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]domain.AuditLogEntry{}, entries...)
	return nil
}
