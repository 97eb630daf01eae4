package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisNamespace prefixes every key so the cache can share a database with
// other applications.
const redisNamespace = "runghost:"

type redisEnvelope struct {
	Value    []byte `json:"v"`
	StoredAt int64  `json:"at"`
}

// Redis is a Store backend for deployments where several dashboard
// processes share one cache.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to the Redis instance described by url
// (e.g. "redis://localhost:6379/0").
func OpenRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Initialize verifies connectivity; Redis needs no schema.
func (r *Redis) Initialize(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := r.client.Get(ctx, redisNamespace+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Entry{}, false, err
	}
	return Entry{Value: env.Value, StoredAt: time.Unix(env.StoredAt, 0)}, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	data, err := json.Marshal(redisEnvelope{Value: value, StoredAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisNamespace+key, data, 0).Err()
}

func (r *Redis) Invalidate(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, redisNamespace+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the client connection pool.
func (r *Redis) Close() error { return r.client.Close() }

var _ Store = (*Redis)(nil)
