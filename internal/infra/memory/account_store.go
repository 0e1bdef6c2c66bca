package memory

import (
	"context"
	"sort"
	"sync"

	"compliscore/internal/domain"
)

// AccountStore is an in-memory implementation of auth.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account // keyed by email
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.Account)}
}

func (s *AccountStore) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

func (s *AccountStore) Add(_ context.Context, acct domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.Email]; ok {
		return domain.ErrEmailTaken
	}
	s.accounts[acct.Email] = acct
	return nil
}

func (s *AccountStore) List(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
