package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// recommendedSecretLen is the HS256 block size; shorter secrets still work.
const recommendedSecretLen = 32

// Signer signs bearer token claims and hands jwt.Parse the key to check them.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	Keyfunc(token *jwt.Token) (any, error)
	Method() jwt.SigningMethod
}

// HMACSigner is the HS256 signer shared by issuer and validator.
type HMACSigner struct {
	secret []byte
}

var _ Signer = (*HMACSigner)(nil)

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, errors.New("[NewHMACSigner] secret is required")
	}
	if len(secret) < recommendedSecretLen {
		log.Warn().Int("length", len(secret)).Msg("JWT secret is shorter than 32 bytes")
	}
	return &HMACSigner{secret: []byte(secret)}, nil
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(h.Method(), claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign bearer token")
	}
	return signed, nil
}

// Keyfunc refuses anything but HMAC so an "alg: none" or RS256 token never
// reaches signature checking with the shared secret.
func (h *HMACSigner) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) Method() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
