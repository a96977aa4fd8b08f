package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Operator is the single fixed credential allowed to log in.
type Operator struct {
	Username     string
	PasswordHash []byte
}

// NewOperator accepts either a bcrypt hash or, failing that, a plaintext
// password which is hashed once at startup.
func NewOperator(username, passwordHash, password string) (Operator, error) {
	if username == "" {
		return Operator{}, errors.New("[NewOperator] username is required")
	}

	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return Operator{}, errors.New("[NewOperator] password hash is not a bcrypt hash")
		}
		return Operator{Username: username, PasswordHash: []byte(passwordHash)}, nil
	}

	if password == "" {
		return Operator{}, errors.New("[NewOperator] password or password hash is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Operator{}, err
	}
	return Operator{Username: username, PasswordHash: hash}, nil
}

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Matches compares both fields without short-circuiting on the username.
func (o Operator) Matches(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(o.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword(o.PasswordHash, []byte(password)) == nil
	return userOK && passOK
}
