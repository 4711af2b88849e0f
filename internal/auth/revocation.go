package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationPrefix = "hikbridge:revoked"

// TokenRevocations reports and records revoked operator tokens by jti.
type TokenRevocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Revoke marks jti revoked for ttl, which should cover the token's remaining lifetime.
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return fmt.Errorf("empty token id")
	}
	return r.client.Set(ctx, revocationKey(jti), "revoked", ttl).Err()
}

func revocationKey(jti string) string {
	return fmt.Sprintf("%s:%s", revocationPrefix, jti)
}
