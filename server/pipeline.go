package server

import (
	"context"
	"net/http"
	"time"

	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/rs/zerolog/log"
)

// Validator checks one precondition of a request. It returns the context
// the next stage runs with, or an error that ends the request.
type Validator func(*http.Request) (context.Context, error)

// Pipeline runs validators in order before handler. The first failure is
// rendered by the error mapper and nothing after it runs.
func Pipeline(handler http.HandlerFunc, validators ...Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, validate := range validators {
			ctx, err := validate(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			r = r.WithContext(ctx)
		}
		handler(w, r)
	}
}

// RequireBearer authenticates the Authorization header and puts the
// username in the context.
func (s *Server) RequireBearer() Validator {
	return func(r *http.Request) (context.Context, error) {
		username, err := s.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			return nil, err
		}
		return context.WithValue(r.Context(), ctxKeyUsername, username), nil
	}
}

// RequireFreshGrant makes sure the authenticated user's Google grant is
// usable, refreshing it when it has expired. Must follow RequireBearer.
func (s *Server) RequireFreshGrant() Validator {
	return func(r *http.Request) (context.Context, error) {
		username, ok := UsernameFrom(r.Context())
		if !ok {
			return nil, qerrors.ErrAuthMissing
		}
		fresh, err := s.grants.EnsureFresh(r.Context(), username)
		if err != nil {
			return nil, err
		}
		if !fresh {
			return nil, qerrors.ErrGrantRefreshFailed
		}
		return r.Context(), nil
	}
}

// RateLimited refuses requests from a client address that has used up its
// bucket.
func (s *Server) RateLimited(limiter *RateLimiter) Validator {
	return func(r *http.Request) (context.Context, error) {
		key := clientIP(r)
		if key == "" {
			log.Warn().Str("path", r.URL.Path).Msg("rate limit: unable to extract key, allowing request")
			return r.Context(), nil
		}
		allowed, delay := limiter.Allow(key)
		if !allowed {
			log.Warn().Str("key", key).Str("path", r.URL.Path).Dur("retry_after", delay).Msg("rate limit exceeded")
			return nil, qerrors.Wrapf(qerrors.ErrRateLimited, "retry in %s", delay.Round(time.Second))
		}
		return r.Context(), nil
	}
}

// RequireQuery checks that every named query parameter is present.
func RequireQuery(names ...string) Validator {
	return func(r *http.Request) (context.Context, error) {
		q := r.URL.Query()
		for _, name := range names {
			if q.Get(name) == "" {
				return nil, qerrors.Wrapf(qerrors.ErrInvalidRequest, "missing %s parameter", name)
			}
		}
		return r.Context(), nil
	}
}
