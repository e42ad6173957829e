package aggressiveness

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// RedisStore implements WindowStore on a Redis sorted set so every process
// managing the fleet shares one window. Members are action IDs scored by
// OccurredAt in unix milliseconds; action bodies live in a companion hash.
type RedisStore struct {
	client  *redis.Client
	key     string
	dataKey string
}

// NewRedisStore connects to url (redis://...) and uses key as the window name.
func NewRedisStore(ctx context.Context, url, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("aggressiveness: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("aggressiveness: ping redis: %w", err)
	}
	return NewRedisStoreFromClient(client, key), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key, dataKey: key + ":actions"}
}

// Add records a. ZADD NX plus HSETNX make repeated IDs a no-op.
func (s *RedisStore) Add(ctx context.Context, a model.Action) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("aggressiveness: marshal action: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, s.key, redis.Z{Score: float64(a.OccurredAt.UnixMilli()), Member: a.ID})
		pipe.HSetNX(ctx, s.dataKey, a.ID, body)
		return nil
	})
	if err != nil {
		return fmt.Errorf("aggressiveness: redis add: %w", err)
	}
	return nil
}

// Since returns every action at or after t, oldest first.
func (s *RedisStore) Since(ctx context.Context, t time.Time) ([]model.Action, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(t.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("aggressiveness: redis range: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.client.HMGet(ctx, s.dataKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("aggressiveness: redis read actions: %w", err)
	}
	out := make([]model.Action, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a model.Action
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("aggressiveness: decode action: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Prune removes actions strictly before the cutoff from both keys.
func (s *RedisStore) Prune(ctx context.Context, before time.Time) error {
	max := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	ids, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return fmt.Errorf("aggressiveness: redis prune range: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, s.key, "-inf", max)
		pipe.HDel(ctx, s.dataKey, ids...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("aggressiveness: redis prune: %w", err)
	}
	return nil
}

// Reset deletes the window.
func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key, s.dataKey).Err(); err != nil {
		return fmt.Errorf("aggressiveness: redis reset: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
