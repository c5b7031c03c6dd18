package botapi

import (
	"context"
	"time"
)

// The subset of the platform API the moderation agent uses.
//
// A zero `until` time means the restriction or ban never expires.
type API interface {
	GetMe(ctx context.Context) (*User, error)
	GetUpdates(ctx context.Context, offset int64, limit, timeoutSeconds int, allowedTypes []string) ([]Update, error)
	SetMyCommands(ctx context.Context, commands []BotCommand, scope BotCommandScope) error
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	BanChatMember(ctx context.Context, chatID, userID int64, until time.Time, revokeMessages bool) error
	BanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error
	UnbanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error
	RestrictChatMember(ctx context.Context, chatID, userID int64, permissions ChatPermissions, until time.Time) error
	GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error)
	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error)
	LeaveChat(ctx context.Context, chatID int64) error
}

var _ API = (*Client)(nil)

func untilDate(until time.Time) int64 {
	if until.IsZero() {
		return 0
	}
	return until.Unix()
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out User
	if err := c.Do(ctx, "getMe", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, limit, timeoutSeconds int, allowedTypes []string) ([]Update, error) {
	params := map[string]any{
		"offset":  offset,
		"limit":   limit,
		"timeout": timeoutSeconds,
	}
	if allowedTypes != nil {
		params["allowed_updates"] = allowedTypes
	}
	var out []Update
	if err := c.Do(ctx, "getUpdates", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand, scope BotCommandScope) error {
	return c.Do(ctx, "setMyCommands", map[string]any{
		"commands": commands,
		"scope":    scope,
	}, nil)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil {
		if opts.DisableNotification {
			params["disable_notification"] = true
		}
		if opts.ReplyToMessageID != 0 {
			params["reply_parameters"] = map[string]any{
				"message_id":                  opts.ReplyToMessageID,
				"allow_sending_without_reply": opts.AllowSendingWithoutReply,
			}
		}
	}
	var out Message
	if err := c.Do(ctx, "sendMessage", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.Do(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64, until time.Time, revokeMessages bool) error {
	return c.Do(ctx, "banChatMember", map[string]any{
		"chat_id":         chatID,
		"user_id":         userID,
		"until_date":      untilDate(until),
		"revoke_messages": revokeMessages,
	}, nil)
}

func (c *Client) BanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return c.Do(ctx, "banChatSenderChat", map[string]any{
		"chat_id":        chatID,
		"sender_chat_id": senderChatID,
	}, nil)
}

func (c *Client) UnbanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return c.Do(ctx, "unbanChatSenderChat", map[string]any{
		"chat_id":        chatID,
		"sender_chat_id": senderChatID,
	}, nil)
}

func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, permissions ChatPermissions, until time.Time) error {
	return c.Do(ctx, "restrictChatMember", map[string]any{
		"chat_id":                          chatID,
		"user_id":                          userID,
		"permissions":                      permissions,
		"use_independent_chat_permissions": true,
		"until_date":                       untilDate(until),
	}, nil)
}

func (c *Client) GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error) {
	var out []ChatMember
	if err := c.Do(ctx, "getChatAdministrators", map[string]any{"chat_id": chatID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var out Chat
	if err := c.Do(ctx, "getChat", map[string]any{"chat_id": chatID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	var out ChatMember
	if err := c.Do(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LeaveChat(ctx context.Context, chatID int64) error {
	return c.Do(ctx, "leaveChat", map[string]any{"chat_id": chatID}, nil)
}
