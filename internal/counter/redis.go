package counter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Backend = (*RedisBackend)(nil)

// RedisBackend stores one namespace of counters as a Redis hash
// (field = promotion id, value = count).
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{client: client, key: redisKey(namespace)}
}

func (r *RedisBackend) Load(ctx context.Context) (map[string]int, error) {
	vals, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}
	counts := make(map[string]int, len(vals))
	for id, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("redis parse count of %s: %w", id, err)
		}
		counts[id] = n
	}
	return counts, nil
}

// Save replaces the hash inside MULTI/EXEC.
func (r *RedisBackend) Save(ctx context.Context, counts map[string]int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(counts) == 0 {
			return nil
		}
		fields := make(map[string]interface{}, len(counts))
		for id, n := range counts {
			fields[id] = n
		}
		pipe.HSet(ctx, r.key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (r *RedisBackend) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func redisKey(namespace string) string {
	return "promo:counters:" + namespace
}
