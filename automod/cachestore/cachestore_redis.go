package cachestore

import (
	"context"
	"strconv"
	"time"

	"github.com/kekal/ModerationBot/botapi"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(1_000, ttl),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisCacheKey(chatID int64) string {
	return "modbot/chat/" + strconv.FormatInt(chatID, 10)
}

func (s RedisCacheStore) GetChat(ctx context.Context, chatID int64) (*botapi.Chat, error) {
	var chat botapi.Chat
	err := s.Data.Get(ctx, redisCacheKey(chatID), &chat)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s RedisCacheStore) SetChat(ctx context.Context, chat botapi.Chat) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(chat.ID),
		Value: chat,
		TTL:   s.TTL,
	})
}

func (s RedisCacheStore) Purge(ctx context.Context, chatID int64) error {
	err := s.Data.Delete(ctx, redisCacheKey(chatID))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
