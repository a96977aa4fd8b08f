package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
	GetTimezone() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StoreConfig interface {
	GetStoreDriver() string
	GetStorePath() string
	GetPairingRegistry() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetPairingSweepInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
}

func New() Config {
	return mainConfig{}
}
