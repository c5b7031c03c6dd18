package automod

import (
	"context"
	"log/slog"
	"time"

	"github.com/kekal/ModerationBot/automod/cachestore"
	"github.com/kekal/ModerationBot/automod/countstore"
	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/policystore"
)

// Fixed clock used by EngineTestFixture.
var FixtureNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// Builds an engine backed by a mock platform client and in-memory stores. Intentionally exported, for use in other packages.
func EngineTestFixture() (*Engine, *botapi.MockClient) {
	logger := slog.Default()
	client := botapi.NewMockClient()
	store := policystore.NewStore(policystore.NewMemBackend(), logger)
	store.Load(context.Background())
	eng := Engine{
		Logger:    logger,
		Client:    client,
		Store:     store,
		Reversals: NewReversalScheduler(context.Background(), logger),
		Cache:     cachestore.NewMemCacheStore(10, time.Hour),
		Counters:  countstore.NewMemCountStore(),
		Now:       func() time.Time { return FixtureNow },
	}
	return &eng, client
}

// Builds a message in chatID which replies, gap after the fact, to a post forwarded from the group's linked channel.
func ChannelReplyFixture(chatID int64, from botapi.User, gap time.Duration) *botapi.Message {
	post := &botapi.Message{
		MessageID: 100,
		From:      &botapi.User{ID: botapi.LinkedChannelProxyID, FirstName: "Telegram"},
		Chat:      botapi.Chat{ID: chatID, Type: botapi.ChatTypeSupergroup, Title: "Discussion"},
		Date:      FixtureNow.Add(-gap).Unix(),
		Text:      "New post",
	}
	return &botapi.Message{
		MessageID:      101,
		From:           &from,
		Chat:           post.Chat,
		Date:           FixtureNow.Unix(),
		Text:           "first!",
		ReplyToMessage: post,
	}
}
