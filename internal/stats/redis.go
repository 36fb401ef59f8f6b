package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisBackend persists the record as a single JSON value, for deployments
// where the host filesystem does not survive restarts.
type redisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend returns a Backend storing the record under key.
func NewRedisBackend(client *redis.Client, key string) Backend {
	return &redisBackend{client: client, key: key}
}

func (r *redisBackend) Name() string {
	return "redis"
}

func (r *redisBackend) Load(ctx context.Context) (Record, bool, error) {
	data, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", r.key, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Record{}, false, fmt.Errorf("parse %s: %w", r.key, err)
	}
	return rec, true, nil
}

func (r *redisBackend) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}
