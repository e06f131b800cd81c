package batchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patrickJVGH/FluentFlow/internal/phrase"
)

const keyPrefix = "fluentflow:batch:"

// RedisConfig holds the connection settings of the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis stores batches as JSON strings with an expiry.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to redis and checks the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, ttl: cfg.TTL}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]phrase.Phrase, bool, error) {
	raw, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get batch: %w", err)
	}
	var items []phrase.Phrase
	if err := json.Unmarshal(raw, &items); err != nil {
		// unreadable entries are dropped and count as a miss
		r.rdb.Del(ctx, keyPrefix+key)
		return nil, false, nil
	}
	return items, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, items []phrase.Phrase) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set batch: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, keyPrefix+key).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
