package attemptrepo

import (
	"errors"
	"sync"
	"time"

	qerrors "github.com/pascalpierre555/quantix/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		attempts: make(map[string]*Attempt),
	}
}

func (r *InMemoryRepo) Upsert(attempt *Attempt) error {
	if attempt == nil {
		return errors.New("attempt cannot be nil")
	}
	if attempt.Token == "" {
		return errors.New("token cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	a := *attempt
	r.attempts[attempt.Token] = &a
	return nil
}

func (r *InMemoryRepo) Get(token string) (*Attempt, error) {
	if token == "" {
		return nil, qerrors.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attempts[token]
	if !ok {
		return nil, qerrors.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r *InMemoryRepo) Delete(token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, token)
	return nil
}

func (r *InMemoryRepo) DeleteExpiredBefore(t time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, a := range r.attempts {
		if a.ExpiresAt.Before(t) {
			delete(r.attempts, token)
			removed++
		}
	}
	return removed
}
