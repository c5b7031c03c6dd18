package policystore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var DefaultRedisKey = "modbot/policy"

// Stores the document under a single redis key, for deployments without a persistent volume.
type RedisBackend struct {
	Client *redis.Client
	Key    string
}

var _ Backend = (*RedisBackend)(nil)

func NewRedisBackend(redisURL, key string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{
		Client: rdb,
		Key:    key,
	}, nil
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	raw, err := b.Client.Get(ctx, b.Key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoDocument
	}
	return raw, err
}

// no expiration: the document is the source of truth across restarts
func (b *RedisBackend) Write(ctx context.Context, doc []byte) error {
	return b.Client.Set(ctx, b.Key, doc, 0).Err()
}

func (b *RedisBackend) Discard(ctx context.Context) error {
	return b.Client.Del(ctx, b.Key).Err()
}
