package config

import "time"

const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"

	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreDriver() string {
	return GetEnv("STORE_DRIVER", StoreDriverFile)
}

// GetStorePath is the JSON document for the file driver or the database file for sqlite.
func (s Store) GetStorePath() string {
	if s.GetStoreDriver() == StoreDriverSQLite {
		return GetEnv("STORE_PATH", "./data/quantix.db")
	}
	return GetEnv("STORE_PATH", "./data/users.json")
}

func (Store) GetPairingRegistry() string {
	return GetEnv("PAIRING_REGISTRY", RegistryMemory)
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetPairingSweepInterval() time.Duration {
	return GetEnvDuration("PAIRING_SWEEP_INTERVAL", time.Minute)
}
