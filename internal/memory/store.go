package memory

import (
	"sync"

	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/storage"
)

// Store hands out at most one Manager per user within a process.
type Store struct {
	repo   storage.Repository
	logger *observability.Logger

	maxGeneral int
	maxAI      int

	mu       sync.Mutex
	managers map[int64]*Manager
}

// NewStore creates a manager store with shared bucket bounds.
func NewStore(repo storage.Repository, logger *observability.Logger, maxGeneral, maxAI int) *Store {
	return &Store{
		repo:       repo,
		logger:     logger,
		maxGeneral: maxGeneral,
		maxAI:      maxAI,
		managers:   map[int64]*Manager{},
	}
}

// ForUser returns the user's manager, creating it on first request.
func (s *Store) ForUser(userID int64) *Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.managers[userID]; ok {
		return m
	}
	m := NewManager(s.repo, s.logger, userID, s.maxGeneral, s.maxAI)
	s.managers[userID] = m
	return m
}

// Drop discards the user's in-memory view without flushing. Used on
// cancellation so the on-disk blob stays at its last good checkpoint.
func (s *Store) Drop(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.managers, userID)
}
