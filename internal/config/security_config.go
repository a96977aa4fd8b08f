package config

import "time"

type SecurityConfig interface {
	GetJWTSecret() string
	GetSessionTokenExpiry() time.Duration
	GetPairingTTL() time.Duration
	GetOperatorUsername() string
	GetOperatorPassword() string
	GetOperatorPasswordHash() string
	GetLoginRateLimit() float64
	GetLoginBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Security) GetSessionTokenExpiry() time.Duration {
	return GetEnvDuration("SESSION_TOKEN_EXPIRY", 60*time.Minute)
}

func (Security) GetPairingTTL() time.Duration {
	return GetEnvDuration("PAIRING_TTL", 300*time.Second)
}

func (Security) GetOperatorUsername() string {
	return GetEnv("OPERATOR_USERNAME", "")
}

// GetOperatorPassword is only consulted when no bcrypt hash is configured.
func (Security) GetOperatorPassword() string {
	return GetEnv("OPERATOR_PASSWORD", "")
}

func (Security) GetOperatorPasswordHash() string {
	return GetEnv("OPERATOR_PASSWORD_HASH", "")
}

// GetLoginRateLimit is requests per second per client address.
func (Security) GetLoginRateLimit() float64 {
	return GetEnvFloat("LOGIN_RATE_LIMIT", 0.2)
}

func (Security) GetLoginBurst() int {
	return GetEnvInt("LOGIN_BURST", 5)
}
