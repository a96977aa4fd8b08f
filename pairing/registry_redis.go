package pairing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

const redisKeyPrefix = "pairing:"

var _ Registry = (*RedisRegistry)(nil)

// RedisRegistry stores each token as a key with a TTL, so Redis does the eviction.
type RedisRegistry struct {
	client  *redis.Client
	nowFunc func() time.Time
}

func NewRedisRegistry(addr, password string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return &RedisRegistry{client: client, nowFunc: time.Now}, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func (r *RedisRegistry) Create(ctx context.Context, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		return Session{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	token, err := GenerateToken(TokenSize)
	if err != nil {
		return Session{}, err
	}

	expiresAt := r.nowFunc().Add(ttl)
	if err := r.client.WithContext(ctx).Set(redisKeyPrefix+token, expiresAt.Unix(), ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("redis set: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

func (r *RedisRegistry) IsValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	n, err := r.client.WithContext(ctx).Exists(redisKeyPrefix + token).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n == 1, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, token string) error {
	if err := r.client.WithContext(ctx).Del(redisKeyPrefix + token).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
