// Package provider is the boundary to the identity provider that issues
// delegated grants. Every network failure is reported as either
// ErrProviderRejected or ErrProviderUnavailable.
package provider

import (
	"context"
	"time"
)

// Token is what the provider hands back from a code exchange or a refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type Provider interface {
	// AuthCodeURL returns the consent page URL carrying state verbatim.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*Token, error)

	// Refresh obtains a new access token. The returned RefreshToken is the
	// old one when the provider did not rotate it.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)

	// UserEmail resolves the account email for accessToken.
	UserEmail(ctx context.Context, accessToken string) (string, error)
}
