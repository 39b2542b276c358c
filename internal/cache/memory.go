package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/agentrag/internal/domain"
)

// MemoryStore keeps entries in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []domain.CacheEntry
	nextID  int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

func (s *MemoryStore) ListEntries(ctx context.Context) ([]domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CacheEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) InsertEntry(ctx context.Context, entry *domain.CacheEntry) error {
	stored := *entry
	stored.Vector = append([]float32(nil), entry.Vector...)
	stored.Sources = append([]string{}, entry.Sources...)
	if entry.Verification != nil {
		v := *entry.Verification
		stored.Verification = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored.ID = s.nextID
	stored.CreatedAt = s.now().UTC()
	s.nextID++
	s.entries = append(s.entries, stored)

	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func (s *MemoryStore) CountEntries(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}
