package automod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kekal/ModerationBot/automod/cachestore"
	"github.com/kekal/ModerationBot/automod/countstore"
	"github.com/kekal/ModerationBot/botapi"
)

var ErrNotThrottled = errors.New("sender is not throttled")

var ErrThrottleTooShort = fmt.Errorf("throttle must be at least %d seconds", MinThrottleSeconds)

// applyThrottle restricts a throttled sender for the configured number of seconds. Returns true if the sender was throttled, which ends processing of the message.
func (eng *Engine) applyThrottle(ctx context.Context, logger *slog.Logger, msg *botapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	senderID := msg.SenderID()
	ts, ok := eng.Store.GetUserThrottle(chatID, senderID)
	if !ok || ts.ThrottleSeconds < MinThrottleSeconds {
		return false, nil
	}

	d := ts.Duration()
	if msg.IsFromChannelAsUser() {
		if err := eng.Client.BanChatSenderChat(ctx, chatID, senderID); err != nil {
			return false, fmt.Errorf("throttling sender chat: %w", err)
		}
	} else {
		if err := eng.Client.RestrictChatMember(ctx, chatID, senderID, botapi.ChatPermissions{}, eng.now().Add(d)); err != nil {
			return false, fmt.Errorf("throttling sender: %w", err)
		}
	}
	actionCount.WithLabelValues("throttled").Inc()
	eng.count(ctx, logger, chatID, countstore.CounterThrottled)

	if ts.ThrottleSeconds < ReversalCeilingSeconds {
		key := ReversalKey{ChatID: chatID, SenderID: senderID}
		channel := msg.IsFromChannelAsUser()
		eng.Reversals.Schedule(key, d, func(ctx context.Context) error {
			return eng.restore(ctx, key, channel, ts.DefaultPermissions)
		})
	}
	logger.Info("throttled sender", "seconds", ts.ThrottleSeconds, "chatTitle", msg.Chat.Title)
	return true, nil
}

// lifts a throttle restriction: unbans a sender chat, or gives a user back the group's default permissions
func (eng *Engine) restore(ctx context.Context, key ReversalKey, channel bool, perms botapi.ChatPermissions) error {
	if channel {
		return eng.Client.UnbanChatSenderChat(ctx, key.ChatID, key.SenderID)
	}
	return eng.Client.RestrictChatMember(ctx, key.ChatID, key.SenderID, perms, time.Time{})
}

// The throttle target of a command: the sender of the message it replies to.
func throttleTarget(target *botapi.Message) (id int64, who string, channel bool) {
	if target.IsFromChannelAsUser() {
		return target.SenderChat.ID, target.SenderChat.Describe(), true
	}
	return target.From.ID, target.From.Describe(), false
}

// ThrottleSender records a throttle for the sender of target. The current default member permissions of the group are captured, so FreeSender can restore them exactly. The restriction itself is applied on the sender's next message.
func (eng *Engine) ThrottleSender(ctx context.Context, chatID int64, target *botapi.Message, seconds uint) (string, error) {
	if seconds < MinThrottleSeconds {
		return "", ErrThrottleTooShort
	}
	if target == nil || target.From == nil {
		return "", fmt.Errorf("throttle target has no sender")
	}
	senderID, who, _ := throttleTarget(target)

	chat, err := cachestore.ResolveChat(ctx, eng.Cache, chatID, eng.Client.GetChat)
	if err != nil {
		return "", fmt.Errorf("reading group permissions: %w", err)
	}
	perms := botapi.DefaultMemberPermissions()
	if chat.Permissions != nil {
		perms = *chat.Permissions
	}

	if err := eng.Store.SetUserThrottle(ctx, chatID, senderID, seconds, perms); err != nil {
		return "", err
	}
	eng.Logger.Info("sender throttle set", "chat", chatID, "sender", senderID, "user", who, "seconds", seconds)
	return who, nil
}

// FreeSender clears the throttle of the sender of target, cancels any pending reversal and restores their permissions.
func (eng *Engine) FreeSender(ctx context.Context, chatID int64, target *botapi.Message) (string, error) {
	if target == nil || target.From == nil {
		return "", fmt.Errorf("throttle target has no sender")
	}
	senderID, who, channel := throttleTarget(target)
	key := ReversalKey{ChatID: chatID, SenderID: senderID}

	eng.Reversals.Cancel(key)
	prev, err := eng.Store.ClearUserThrottle(ctx, chatID, senderID)
	if err != nil {
		return who, fmt.Errorf("%w: %w", ErrNotThrottled, err)
	}
	if err := eng.restore(ctx, key, channel, prev.DefaultPermissions); err != nil {
		return who, fmt.Errorf("restoring permissions: %w", err)
	}
	eng.Logger.Info("sender throttle cleared", "chat", chatID, "sender", senderID, "user", who)
	return who, nil
}
