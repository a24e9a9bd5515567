package cache

import (
	"context"
	"sync"

	"verigate/internal/verification/models"
)

// InMemoryStore is a process-local Store. It is the default backend and the
// one used in tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.VerifiedSession
	opts    options
}

func NewInMemory(opts ...Option) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]models.VerifiedSession),
		opts:    newOptions(opts),
	}
}

func (s *InMemoryStore) Get(_ context.Context, subjectKey string) (*models.VerifiedSession, error) {
	s.mu.RLock()
	entry, ok := s.entries[subjectKey]
	s.mu.RUnlock()
	if !ok {
		s.opts.metrics.IncCacheLookup("memory", "miss")
		return nil, nil
	}

	if entry.Expired(s.opts.now(), s.opts.ttl) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have refreshed it.
		if current, ok := s.entries[subjectKey]; ok && current.Expired(s.opts.now(), s.opts.ttl) {
			delete(s.entries, subjectKey)
		}
		s.mu.Unlock()
		s.opts.metrics.IncCacheLookup("memory", "expired")
		return nil, nil
	}

	s.opts.metrics.IncCacheLookup("memory", "hit")
	return &entry, nil
}

func (s *InMemoryStore) Put(_ context.Context, subjectKey, sessionID string, status models.Status) error {
	if err := validatePut(subjectKey, sessionID, status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subjectKey] = models.VerifiedSession{
		SessionID:  sessionID,
		SubjectKey: subjectKey,
		VerifiedAt: s.opts.now(),
		Status:     status,
	}
	return nil
}

func (s *InMemoryStore) Evict(_ context.Context, subjectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, subjectKey)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
