package consumercache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

// RedisStore backs the cache with a single redis key, letting multiple
// consumer-API processes share one populated aggregate instead of each
// running its own refresher.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore constructs a RedisStore using client, keyed under key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Get implements Store. Returns (nil, nil) if the key is not set.
func (s *RedisStore) Get(ctx context.Context) (*Aggregate, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apierrors.NewLocalFailure("reading cached aggregate from redis", err)
	}
	var agg Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, apierrors.NewLocalFailure("decoding cached aggregate", err)
	}
	return &agg, nil
}

// Set implements Store. The cached value never expires on its own; it is
// overwritten by the next refresh cycle instead.
func (s *RedisStore) Set(ctx context.Context, agg *Aggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return apierrors.NewLocalFailure("encoding aggregate for redis", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return apierrors.NewLocalFailure("writing cached aggregate to redis", err)
	}
	return nil
}
