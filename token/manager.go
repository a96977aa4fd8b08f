package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/pkg/errors"
)

const (
	claimUser = "user"

	defaultTokenExpiry = 60 * time.Minute
)

// Manager issues and validates the short-lived bearer tokens the device
// presents on every API call.
type Manager struct {
	signer  Signer
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.expiry <= 0 {
		m.expiry = defaultTokenExpiry
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue signs a token for username. Each call yields a distinct token.
func (m *Manager) Issue(username string) (string, error) {
	if username == "" {
		return "", errors.New("[Manager.Issue] username is required")
	}

	now := m.nowFunc()
	claims := jwt.MapClaims{
		claimUser: username,
		"iat":     now.Unix(),
		"exp":     now.Add(m.expiry).Unix(),
		"jti":     uuid.New().String(),
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.Issue Sign")
	}
	return signed, nil
}

// Validate returns the username carried by rawToken.
// The signature is checked before expiry, so ErrAuthExpired is only
// reported for tokens this manager actually signed.
func (m *Manager) Validate(rawToken string) (string, error) {
	if strings.TrimSpace(rawToken) == "" {
		return "", qerrors.ErrAuthMissing
	}

	token, err := jwt.Parse(rawToken, m.signer.Keyfunc,
		jwt.WithValidMethods([]string{m.signer.Method().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", qerrors.ErrAuthExpired
		}
		return "", qerrors.Wrapf(qerrors.ErrAuthInvalid, "%v", err)
	}
	if !token.Valid {
		return "", qerrors.ErrAuthInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", qerrors.ErrAuthInvalid
	}
	username, _ := claims[claimUser].(string)
	if username == "" {
		return "", qerrors.Wrapf(qerrors.ErrAuthInvalid, "missing %s claim", claimUser)
	}
	return username, nil
}

// ParseBearer extracts the token from an Authorization header value.
// Anything other than a non-empty "Bearer <token>" counts as missing.
func ParseBearer(header string) (string, error) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", qerrors.ErrAuthMissing
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return "", qerrors.ErrAuthMissing
	}
	return raw, nil
}
