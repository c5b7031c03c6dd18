package cachestore

import (
	"context"
	"time"

	"github.com/kekal/ModerationBot/botapi"
)

var DefaultTTL = 10 * time.Minute

type CacheStore interface {
	// returns nil (and no error) on a miss
	GetChat(ctx context.Context, chatID int64) (*botapi.Chat, error)
	SetChat(ctx context.Context, chat botapi.Chat) error
	Purge(ctx context.Context, chatID int64) error
}

// Fetches a chat through the cache, calling fetch on a miss. Cache errors never fail the lookup.
func ResolveChat(ctx context.Context, cs CacheStore, chatID int64, fetch func(ctx context.Context, chatID int64) (*botapi.Chat, error)) (*botapi.Chat, error) {
	if chat, err := cs.GetChat(ctx, chatID); err == nil && chat != nil {
		cacheHits.Inc()
		return chat, nil
	}
	cacheMisses.Inc()
	chat, err := fetch(ctx, chatID)
	if err != nil {
		return nil, err
	}
	_ = cs.SetChat(ctx, *chat)
	return chat, nil
}
