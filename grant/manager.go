// Package grant keeps each user's delegated Google grant usable: it detects
// expiry, refreshes through the provider and persists the outcome.
package grant

import (
	"context"
	"errors"
	"time"

	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/pascalpierre555/quantix/provider"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a shared refresh once it no longer follows any caller's ctx.
const refreshTimeout = 30 * time.Second

// errKeepStored aborts an Update without writing when the stored grant should stand.
var errKeepStored = errors.New("stored grant kept")

type Manager struct {
	store    credentials.Repo
	provider provider.Provider
	nowFunc  func() time.Time
	refresh  singleflight.Group
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(store credentials.Repo, p provider.Provider, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] credentials store is required")
	}
	if p == nil {
		return nil, errors.New("[NewManager] provider is required")
	}

	m := &Manager{
		store:    store,
		provider: p,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// EnsureFresh reports whether username holds a usable access token,
// refreshing it first when it has expired. A fresh grant costs no network
// call; an expired one costs exactly one. Nothing is written on failure.
func (m *Manager) EnsureFresh(ctx context.Context, username string) (bool, error) {
	_, err := m.freshGrant(ctx, username)
	if err != nil {
		return false, err
	}
	return true, nil
}

// AccessToken returns a usable access token for username.
func (m *Manager) AccessToken(ctx context.Context, username string) (string, error) {
	g, err := m.freshGrant(ctx, username)
	if err != nil {
		return "", err
	}
	return g.AccessToken, nil
}

// ExchangeCode trades an authorization code for a grant and resolves the
// account email. Both calls must succeed.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*credentials.Grant, error) {
	if code == "" {
		return nil, qerrors.Wrapf(qerrors.ErrInvalidRequest, "authorization code is required")
	}

	tok, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	email, err := m.provider.UserEmail(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	return &credentials.Grant{
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	}, nil
}

func (m *Manager) freshGrant(ctx context.Context, username string) (*credentials.Grant, error) {
	rec, err := m.store.Get(username)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrNotFound) {
			return nil, qerrors.ErrGrantAbsent
		}
		return nil, err
	}
	if rec.Google == nil {
		return nil, qerrors.ErrGrantAbsent
	}
	if rec.Google.Fresh(m.nowFunc()) {
		return rec.Google, nil
	}
	if rec.Google.RefreshToken == "" {
		return nil, qerrors.Wrapf(qerrors.ErrGrantRefreshFailed, "no refresh token for %s", username)
	}

	// Concurrent callers for the same user share one refresh. It runs detached
	// from the first caller's ctx; each caller stops waiting on its own.
	previous := *rec.Google
	ch := m.refresh.DoChan(username, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refreshAndPersist(rctx, username, previous)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*credentials.Grant), nil
	}
}

// refreshAndPersist runs outside any store lock; the store is only touched
// again through Update once the provider has answered.
func (m *Manager) refreshAndPersist(ctx context.Context, username string, previous credentials.Grant) (*credentials.Grant, error) {
	tok, err := m.provider.Refresh(ctx, previous.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("grant refresh failed")
		if qerrors.Is(err, qerrors.ErrProviderRejected) {
			return nil, qerrors.Wrapf(qerrors.ErrGrantRefreshFailed, "%v", err)
		}
		return nil, err
	}
	if !tok.ExpiresAt.After(previous.ExpiresAt) {
		return nil, qerrors.Wrapf(qerrors.ErrGrantRefreshFailed, "refreshed expiry does not advance")
	}

	var updated *credentials.Grant
	err = m.store.Update(username, func(rec *credentials.Record) error {
		if rec.Google == nil {
			// unbound while the refresh was in flight
			return qerrors.ErrGrantAbsent
		}
		if rec.Google.Email != previous.Email || rec.Google.RefreshToken != previous.RefreshToken {
			// re-paired while the refresh was in flight; the stored grant wins
			g := *rec.Google
			updated = &g
			return errKeepStored
		}
		if rec.Google.ExpiresAt.After(tok.ExpiresAt) {
			// a later refresh already landed
			g := *rec.Google
			updated = &g
			return errKeepStored
		}
		rec.Google.AccessToken = tok.AccessToken
		rec.Google.ExpiresAt = tok.ExpiresAt
		if tok.RefreshToken != "" {
			rec.Google.RefreshToken = tok.RefreshToken
		}
		g := *rec.Google
		updated = &g
		return nil
	})
	if errors.Is(err, errKeepStored) {
		if !updated.Fresh(m.nowFunc()) {
			return nil, qerrors.Wrapf(qerrors.ErrGrantRefreshFailed, "grant for %s changed during refresh", username)
		}
		log.Debug().Str("username", username).Msg("grant replaced during refresh, keeping stored grant")
		return updated, nil
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("username", username).Time("expires_at", updated.ExpiresAt).Msg("grant refreshed")
	return updated, nil
}
