package automod

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kekal/ModerationBot/automod/cachestore"
	"github.com/kekal/ModerationBot/automod/countstore"
	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/policystore"

	"golang.org/x/time/rate"
)

const (
	// throttles below this are treated as unset
	MinThrottleSeconds = 10
	// throttles at or above this are not reversed automatically
	ReversalCeilingSeconds = 60
)

const NonMemberLinkNotice = "Non-members may not post links in this group."

const (
	ActionBanned = "banned"
	ActionMuted  = "muted"
)

// runtime for classifying group messages and executing moderation actions.
//
// Client, Store, Reversals, Cache and Counters must all be set; see EngineTestFixture for a minimal configuration.
type Engine struct {
	Logger    *slog.Logger
	Client    botapi.API
	Store     *policystore.Store
	Reversals *ReversalScheduler
	Cache     cachestore.CacheStore
	Counters  countstore.CountStore
	// defaults to time.Now
	Now func() time.Time
}

var disengagedLog = rate.Sometimes{First: 1, Interval: time.Minute}

func (eng *Engine) now() time.Time {
	if eng.Now != nil {
		return eng.Now()
	}
	return time.Now()
}

// ProcessMessage runs the moderation pipeline for a single non-command group message.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *botapi.Message) (err error) {
	// similar to an HTTP server, we want to recover any panics from message processing
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod message processing exception", "err", r, "chat", msg.Chat.ID, "message", msg.MessageID)
			err = fmt.Errorf("panic while processing message: %v", r)
		}
	}()

	if !eng.Store.Engaged() {
		disengagedLog.Do(func() {
			eng.Logger.Debug("disengaged, skipping group messages")
		})
		messageProcessCount.WithLabelValues("disengaged").Inc()
		return nil
	}
	if msg.From == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
	}()

	logger := eng.Logger.With("chat", msg.Chat.ID, "message", msg.MessageID, "sender", msg.SenderID())
	outcome, err := eng.processMessage(ctx, logger, msg)
	if err != nil {
		messageErrorCount.Inc()
		return err
	}
	messageProcessCount.WithLabelValues(outcome).Inc()
	return nil
}

func (eng *Engine) processMessage(ctx context.Context, logger *slog.Logger, msg *botapi.Message) (string, error) {
	chatID := msg.Chat.ID
	gp := eng.Store.GetGroupPolicy(ctx, chatID)

	if gp.DisableJoining && msg.IsMembershipNotice() {
		if err := eng.Client.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
			return "", fmt.Errorf("deleting membership notice: %w", err)
		}
		eng.count(ctx, logger, chatID, countstore.CounterJoins)
		logger.Info("deleted membership notice", "chatTitle", msg.Chat.Title)
		return "membership", nil
	}

	throttled, err := eng.applyThrottle(ctx, logger, msg)
	if err != nil {
		return "", err
	}
	if throttled {
		return "throttled", nil
	}

	if !msg.IsReplyToLinkedChannelPost() {
		return "ignored", nil
	}

	if gp.CleanNonGroupURL && msg.HasLink() {
		member, err := eng.isGroupMember(ctx, msg)
		if err != nil {
			return "", fmt.Errorf("resolving sender membership: %w", err)
		}
		if !member {
			if err := eng.elaborate(ctx, logger, msg, gp, "non-member link"); err != nil {
				return "", err
			}
			eng.count(ctx, logger, chatID, countstore.CounterLinks)
			if !gp.SilentMode {
				_, err := eng.Client.SendMessage(ctx, chatID, NonMemberLinkNotice, &botapi.SendOptions{
					ReplyToMessageID:         msg.MessageID,
					AllowSendingWithoutReply: true,
					DisableNotification:      true,
				})
				if err != nil {
					return "", fmt.Errorf("sending link notice: %w", err)
				}
			}
			return "link", nil
		}
	}

	gap := msg.Time().Sub(msg.ReplyToMessage.Time())
	if gap < gp.Window() {
		if err := eng.elaborate(ctx, logger, msg, gp, "reply window"); err != nil {
			return "", err
		}
		return "spam", nil
	}
	return "clean", nil
}

// Members, administrators and the creator count as group members. Anonymous admins do too; channels posting as themselves do not.
func (eng *Engine) isGroupMember(ctx context.Context, msg *botapi.Message) (bool, error) {
	if msg.From.ID == botapi.GroupAnonymousAdminID {
		return true, nil
	}
	if msg.IsFromChannelAsUser() {
		return false, nil
	}
	cm, err := eng.Client.GetChatMember(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return false, err
	}
	switch cm.Status {
	case botapi.MemberStatusMember, botapi.MemberStatusAdministrator, botapi.MemberStatusCreator:
		return true, nil
	}
	return false, nil
}

// elaborate deletes a spam message and restricts its sender according to the group policy.
func (eng *Engine) elaborate(ctx context.Context, logger *slog.Logger, msg *botapi.Message, gp *policystore.GroupPolicy, reason string) error {
	chatID := msg.Chat.ID
	if err := eng.Client.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
		return fmt.Errorf("deleting spam message: %w", err)
	}

	who := msg.From.Describe()
	restriction, timed := gp.Restriction()
	var until time.Time
	if timed {
		until = eng.now().Add(restriction)
	}

	action := ""
	switch {
	case msg.IsFromChannelAsUser() && (gp.BanUsers || gp.UseMute):
		// channels can't be muted individually, so they get a sender-chat ban
		sender, err := cachestore.ResolveChat(ctx, eng.Cache, msg.SenderChat.ID, eng.Client.GetChat)
		if err != nil {
			logger.Warn("failed to resolve sender chat", "senderChat", msg.SenderChat.ID, "err", err)
			sender = msg.SenderChat
		}
		who = sender.Describe()
		if err := eng.Client.BanChatSenderChat(ctx, chatID, msg.SenderChat.ID); err != nil {
			return fmt.Errorf("banning sender chat: %w", err)
		}
		action = ActionMuted
	case gp.BanUsers:
		if err := eng.Client.BanChatMember(ctx, chatID, msg.From.ID, until, false); err != nil {
			return fmt.Errorf("banning sender: %w", err)
		}
		action = ActionBanned
	case gp.UseMute:
		if err := eng.Client.RestrictChatMember(ctx, chatID, msg.From.ID, botapi.ChatPermissions{}, until); err != nil {
			return fmt.Errorf("muting sender: %w", err)
		}
		action = ActionMuted
	}

	eng.count(ctx, logger, chatID, countstore.CounterSpam)
	if action != "" {
		actionCount.WithLabelValues(action).Inc()
		eng.count(ctx, logger, chatID, action)
		if err := eng.Counters.IncrementDistinct(ctx, chatID, countstore.CounterOffenders, msg.SenderID()); err != nil {
			logger.Warn("failed to update offender count", "err", err)
		}
	}

	if !gp.SilentMode && action != "" {
		text := fmt.Sprintf("User %s has been %s for %s.", who, action, FormatRestriction(restriction, timed))
		_, err := eng.Client.SendMessage(ctx, chatID, text, &botapi.SendOptions{
			ReplyToMessageID:         msg.MessageID,
			AllowSendingWithoutReply: true,
			DisableNotification:      true,
		})
		if err != nil {
			return fmt.Errorf("sending spam notice: %w", err)
		}
	}

	if action == "" {
		action = "deleted"
	}
	logger.Info("removed spam message", "user", who, "action", action, "reason", reason, "chatTitle", msg.Chat.Title, "link", DeepLink(chatID, msg.MessageID))
	return nil
}

// counter names match the action names
func (eng *Engine) count(ctx context.Context, logger *slog.Logger, chatID int64, counter string) {
	if err := eng.Counters.Increment(ctx, chatID, counter); err != nil {
		logger.Warn("failed to update moderation counter", "counter", counter, "err", err)
	}
}

// Renders a restriction length for notices: "24 hours", "1.5 hours" or "forever".
func FormatRestriction(d time.Duration, timed bool) string {
	if !timed {
		return "forever"
	}
	return strconv.FormatFloat(d.Hours(), 'f', -1, 64) + " hours"
}

// Link to a message in a supergroup, as shown to members.
func DeepLink(chatID int64, messageID int) string {
	id := strings.TrimPrefix(strconv.FormatInt(chatID, 10), "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}
