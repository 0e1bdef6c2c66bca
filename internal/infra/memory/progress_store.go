package memory

import (
	"context"
	"sync"

	"compliscore/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore with the
// same compare-and-swap contract as the postgres store: a write whose revision
// does not match the stored record fails with domain.ErrRevisionConflict.
type ProgressStore struct {
	mu      sync.Mutex
	records map[string]domain.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{records: make(map[string]domain.Progress)}
}

func (s *ProgressStore) GetProgress(_ context.Context, userID string) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	return record.Clone(), nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, p *domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[p.UserID]
	if ok && existing.Revision != p.Revision {
		return domain.ErrRevisionConflict
	}
	if !ok && p.Revision != 0 {
		return domain.ErrRevisionConflict
	}
	p.Revision++
	s.records[p.UserID] = p.Clone()
	return nil
}
