package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

const redisKeyPrefix = "ledger:revoked:"

// RedisRevocations shares the revocation list between API instances.
// Entries expire on their own through the key TTL.
type RedisRevocations struct {
	client rueidis.Client
}

// NewRedisRevocations connects to addr and pings it.
func NewRedisRevocations(ctx context.Context, addr string) (*RedisRevocations, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:   []string{addr},
		MaxFlushDelay: 100 * time.Microsecond,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}
	return &RedisRevocations{client: client}, nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	cmd := r.client.B().Exists().Key(redisKeyPrefix + fingerprint(token)).Build()
	n, err := r.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	cmd := r.client.B().Set().Key(redisKeyPrefix + fingerprint(token)).Value("1").Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisRevocations) Close() {
	r.client.Close()
}
