package gateway

import (
	"context"
	"time"

	"github.com/kekal/ModerationBot/botapi"
)

func (g *Gateway) GetMe(ctx context.Context) (*botapi.User, error) {
	return Invoke(ctx, g, "getMe", func(ctx context.Context) (*botapi.User, error) {
		return g.API.GetMe(ctx)
	})
}

// GetUpdates does not take the gateway slot: a long-poll may block for a minute, and moderation calls must not queue behind it. The shared delay still follows.
func (g *Gateway) GetUpdates(ctx context.Context, offset int64, limit, timeoutSeconds int, allowedTypes []string) ([]botapi.Update, error) {
	out, err := timedCall(ctx, g, "getUpdates", func(ctx context.Context) ([]botapi.Update, error) {
		return g.API.GetUpdates(ctx, offset, limit, timeoutSeconds, allowedTypes)
	})
	g.pause(ctx)
	return out, err
}

func (g *Gateway) SetMyCommands(ctx context.Context, commands []botapi.BotCommand, scope botapi.BotCommandScope) error {
	return g.do(ctx, "setMyCommands", func(ctx context.Context) error {
		return g.API.SetMyCommands(ctx, commands, scope)
	})
}

func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string, opts *botapi.SendOptions) (*botapi.Message, error) {
	return Invoke(ctx, g, "sendMessage", func(ctx context.Context) (*botapi.Message, error) {
		return g.API.SendMessage(ctx, chatID, text, opts)
	})
}

func (g *Gateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return g.do(ctx, "deleteMessage", func(ctx context.Context) error {
		return g.API.DeleteMessage(ctx, chatID, messageID)
	})
}

func (g *Gateway) BanChatMember(ctx context.Context, chatID, userID int64, until time.Time, revokeMessages bool) error {
	return g.do(ctx, "banChatMember", func(ctx context.Context) error {
		return g.API.BanChatMember(ctx, chatID, userID, until, revokeMessages)
	})
}

func (g *Gateway) BanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return g.do(ctx, "banChatSenderChat", func(ctx context.Context) error {
		return g.API.BanChatSenderChat(ctx, chatID, senderChatID)
	})
}

func (g *Gateway) UnbanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return g.do(ctx, "unbanChatSenderChat", func(ctx context.Context) error {
		return g.API.UnbanChatSenderChat(ctx, chatID, senderChatID)
	})
}

func (g *Gateway) RestrictChatMember(ctx context.Context, chatID, userID int64, permissions botapi.ChatPermissions, until time.Time) error {
	return g.do(ctx, "restrictChatMember", func(ctx context.Context) error {
		return g.API.RestrictChatMember(ctx, chatID, userID, permissions, until)
	})
}

func (g *Gateway) GetChatAdministrators(ctx context.Context, chatID int64) ([]botapi.ChatMember, error) {
	return Invoke(ctx, g, "getChatAdministrators", func(ctx context.Context) ([]botapi.ChatMember, error) {
		return g.API.GetChatAdministrators(ctx, chatID)
	})
}

func (g *Gateway) GetChat(ctx context.Context, chatID int64) (*botapi.Chat, error) {
	return Invoke(ctx, g, "getChat", func(ctx context.Context) (*botapi.Chat, error) {
		return g.API.GetChat(ctx, chatID)
	})
}

func (g *Gateway) GetChatMember(ctx context.Context, chatID, userID int64) (*botapi.ChatMember, error) {
	return Invoke(ctx, g, "getChatMember", func(ctx context.Context) (*botapi.ChatMember, error) {
		return g.API.GetChatMember(ctx, chatID, userID)
	})
}

func (g *Gateway) LeaveChat(ctx context.Context, chatID int64) error {
	return g.do(ctx, "leaveChat", func(ctx context.Context) error {
		return g.API.LeaveChat(ctx, chatID)
	})
}
