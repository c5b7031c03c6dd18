package cachestore

import (
	"context"
	"time"

	"github.com/kekal/ModerationBot/botapi"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	Data *expirable.LRU[int64, botapi.Chat]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) MemCacheStore {
	return MemCacheStore{
		Data: expirable.NewLRU[int64, botapi.Chat](capacity, nil, ttl),
	}
}

func (s MemCacheStore) GetChat(ctx context.Context, chatID int64) (*botapi.Chat, error) {
	v, ok := s.Data.Get(chatID)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s MemCacheStore) SetChat(ctx context.Context, chat botapi.Chat) error {
	s.Data.Add(chat.ID, chat)
	return nil
}

func (s MemCacheStore) Purge(ctx context.Context, chatID int64) error {
	s.Data.Remove(chatID)
	return nil
}
