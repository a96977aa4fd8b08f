// Package pairing tracks the short-lived tokens embedded in QR setup URLs.
// The registry only knows tokens and their expiry; binding a token to a
// user happens in the credential store.
package pairing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	// TokenSize is 256 bits of entropy, 43 characters base64url.
	TokenSize = 32

	DefaultTTL = 300 * time.Second
)

// Session is a freshly created pairing token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

type Registry interface {
	// Create registers a new random token valid for ttl.
	Create(ctx context.Context, ttl time.Duration) (Session, error)

	// IsValid reports whether token exists and has not expired.
	// Expired entries are forgotten as a side effect.
	IsValid(ctx context.Context, token string) (bool, error)

	// Revoke forgets token. Unknown tokens are not an error.
	Revoke(ctx context.Context, token string) error
}

// GenerateToken returns size random bytes as an unpadded base64url string.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
