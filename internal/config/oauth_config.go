package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURL() string
	GetGoogleScopes() []string
	GetProviderTimeout() time.Duration
	GetDefaultGrantExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

var defaultScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/calendar.readonly",
}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

// GetGoogleRedirectURL defaults to the callback route under BASE_URL.
func (OAuth) GetGoogleRedirectURL() string {
	return GetEnv("GOOGLE_REDIRECT_URL", EnvVars{}.GetBaseURL()+"/oauth2/callback")
}

func (OAuth) GetGoogleScopes() []string {
	raw := GetEnv("GOOGLE_SCOPES", "")
	if raw == "" {
		return defaultScopes
	}
	return strings.Fields(strings.ReplaceAll(raw, ",", " "))
}

func (OAuth) GetProviderTimeout() time.Duration {
	return GetEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
}

// GetDefaultGrantExpiry is used when the provider omits expires_in.
func (OAuth) GetDefaultGrantExpiry() time.Duration {
	return GetEnvDuration("DEFAULT_GRANT_EXPIRY", time.Hour)
}
