package auth

import (
	"errors"

	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/pascalpierre555/quantix/token"
	"github.com/rs/zerolog/log"
)

// TokenIssuer issues and validates bearer tokens.
type TokenIssuer interface {
	Issue(username string) (string, error)
	Validate(rawToken string) (string, error)
}

// Service logs the operator in and authenticates bearer tokens on later calls.
type Service struct {
	operator Operator
	tokens   TokenIssuer
	store    credentials.Repo
}

func NewService(operator Operator, tokens TokenIssuer, store credentials.Repo) (*Service, error) {
	if operator.Username == "" || len(operator.PasswordHash) == 0 {
		return nil, errors.New("[NewService] operator credential is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] credentials store is required")
	}

	return &Service{
		operator: operator,
		tokens:   tokens,
		store:    store,
	}, nil
}

// Login checks the operator credential, issues a bearer token and records it
// as the user's api_jwt. A re-login overwrites the stored copy; earlier
// tokens stay valid until they expire.
func (s *Service) Login(username, password string) (string, error) {
	if !s.operator.Matches(username, password) {
		log.Info().Str("username", username).Msg("login rejected")
		return "", qerrors.ErrInvalidCredentials
	}

	raw, err := s.tokens.Issue(username)
	if err != nil {
		return "", err
	}

	if err := s.store.Update(username, func(rec *credentials.Record) error {
		rec.APIJWT = raw
		return nil
	}); err != nil {
		return "", err
	}

	log.Info().Str("username", username).Msg("login succeeded")
	return raw, nil
}

// Authenticate resolves an Authorization header value to a username.
func (s *Service) Authenticate(authorizationHeader string) (string, error) {
	raw, err := token.ParseBearer(authorizationHeader)
	if err != nil {
		return "", err
	}
	return s.tokens.Validate(raw)
}
