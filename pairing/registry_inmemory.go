package pairing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ Registry = (*InMemoryRegistry)(nil)

// InMemoryRegistry is the default Registry. Tokens do not survive a restart.
type InMemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	nowFunc  func() time.Time
}

type InMemoryOption func(*InMemoryRegistry)

func WithNowFunc(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRegistry) {
		r.nowFunc = now
	}
}

func NewInMemoryRegistry(options ...InMemoryOption) *InMemoryRegistry {
	r := &InMemoryRegistry{
		sessions: make(map[string]time.Time),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRegistry) Create(_ context.Context, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		return Session{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	token, err := GenerateToken(TokenSize)
	if err != nil {
		return Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt := r.nowFunc().Add(ttl)
	r.sessions[token] = expiresAt
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

func (r *InMemoryRegistry) IsValid(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt, ok := r.sessions[token]
	if !ok {
		return false, nil
	}
	if !r.nowFunc().Before(expiresAt) {
		delete(r.sessions, token)
		return false, nil
	}
	return true, nil
}

func (r *InMemoryRegistry) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (r *InMemoryRegistry) PurgeExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	removed := 0
	for token, expiresAt := range r.sessions {
		if !now.Before(expiresAt) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked tokens, expired or not.
func (r *InMemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
