package syncer

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisStateKey = "syncqueue:state"

// RedisStore persists queue state as a single JSON blob.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, redisStateKey, data, 0).Err()
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, redisStateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}
