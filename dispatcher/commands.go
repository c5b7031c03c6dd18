package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kekal/ModerationBot/automod"
	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/policystore"
)

// platform limit on message text length, in characters
const MaxMessageLength = 4096

// largest restriction, in minutes, that still fits a time.Duration
const maxRestrictionMinutes = uint64(math.MaxInt64 / int64(time.Minute))

const (
	NotOwnerReply       = "You are not the bot owner."
	UseCommandsReply    = "Please use commands to interact with the bot. Use /help to see available commands."
	UnknownCommandReply = "Unknown command."
	EmptyLogReply       = "No actions logged yet."
)

var groupCommands = []botapi.BotCommand{
	{Command: "ban", Description: "Enable banning users when deleting spam"},
	{Command: "no_restrict", Description: "Disable restricting users when deleting spam"},
	{Command: "mute", Description: "Mute users instead of banning"},
	{Command: "set_spam_time", Description: "Set the spam time window in seconds"},
	{Command: "set_restriction_time", Description: "Set the restriction duration in minutes or '0' for infinite"},
	{Command: "silent", Description: "Toggle silent mode (no messages on spam actions)"},
	{Command: "joining", Description: "Toggle deletion of join/leave messages"},
	{Command: "clean_non_group_url_messages", Description: "Toggle deletion of links posted by non-members"},
	{Command: "throttle_user", Description: "Reply to a message to restrict its sender for N seconds after each message"},
	{Command: "free_user", Description: "Reply to a message to lift the throttle of its sender"},
	{Command: "stats", Description: "Show moderation statistics for this group"},
	{Command: "help", Description: "Show available commands"},
}

func privateCommands(logSize int) []botapi.BotCommand {
	return []botapi.BotCommand{
		{Command: "log", Description: fmt.Sprintf("Show the last %d actions", logSize)},
		{Command: "engage", Description: "Start processing updates"},
		{Command: "disengage", Description: "Stop processing updates"},
		{Command: "restart_service", Description: "Restarting the service"},
		{Command: "exit", Description: "Stop the bot"},
		{Command: "help", Description: "Show available commands"},
	}
}

func helpText(cmds []botapi.BotCommand) string {
	var sb strings.Builder
	sb.WriteString("Available commands:")
	for _, c := range cmds {
		fmt.Fprintf(&sb, "\n/%s - %s", c.Command, c.Description)
	}
	return sb.String()
}

func (d *Dispatcher) handlePrivate(ctx context.Context, logger *slog.Logger, msg *botapi.Message) error {
	chatID := msg.Chat.ID
	if d.OwnerID != 0 && msg.From.ID != d.OwnerID {
		logger.Warn("rejected private message from non-owner", "user", msg.From.Describe())
		if err := d.reply(ctx, chatID, NotOwnerReply); err != nil {
			return err
		}
		return d.Client.LeaveChat(ctx, chatID)
	}

	name, _, ok := msg.Command()
	if !ok {
		return d.reply(ctx, chatID, UseCommandsReply)
	}
	commandsHandled.WithLabelValues("private", name).Inc()

	switch name {
	case "log":
		return d.reply(ctx, chatID, FormatLog(d.ActionLog.Entries()))
	case "engage":
		d.Store.SetEngaged(ctx, true)
		logger.Info("engaged")
		return d.reply(ctx, chatID, "Bot is now engaged and processing updates.")
	case "disengage":
		d.Store.SetEngaged(ctx, false)
		logger.Info("disengaged")
		return d.reply(ctx, chatID, "Bot is now disengaged and will not process updates.")
	case "restart_service":
		if err := d.reply(ctx, chatID, "Restarting the service."); err != nil {
			logger.Warn("failed to confirm restart", "err", err)
		}
		return &StopError{Code: ExitRestart, Reason: "restart requested by owner"}
	case "exit":
		if err := d.reply(ctx, chatID, "Bot is shutting down."); err != nil {
			logger.Warn("failed to confirm shutdown", "err", err)
		}
		if d.me != nil {
			d.NotifyOwner(ctx, fmt.Sprintf("Bot service @%s (%d) has been stopped", d.me.Username, d.me.ID))
		}
		return &StopError{Code: ExitStop, Reason: "stop requested by owner"}
	case "help":
		return d.reply(ctx, chatID, helpText(privateCommands(d.ActionLog.Size())))
	default:
		return d.reply(ctx, chatID, UnknownCommandReply)
	}
}

// FormatLog renders action log entries for a reply, dropping the oldest ones if they don't fit in one message.
func FormatLog(entries []string) string {
	if len(entries) == 0 {
		return EmptyLogReply
	}
	const sep = "\n\n\n"
	out := ""
	for i := len(entries) - 1; i >= 0; i-- {
		next := entries[i]
		if out != "" {
			next += sep + out
		}
		if utf8.RuneCountInString(next) > MaxMessageLength {
			break
		}
		out = next
	}
	if out == "" {
		// a single oversized entry
		r := []rune(entries[len(entries)-1])
		out = string(r[:MaxMessageLength])
	}
	return out
}

func (d *Dispatcher) handleGroupCommand(ctx context.Context, logger *slog.Logger, msg *botapi.Message) error {
	chatID := msg.Chat.ID
	if !msg.Chat.IsGroup() {
		return nil
	}

	status, err := d.memberStatus(ctx, chatID, msg.From.ID)
	if err != nil {
		return fmt.Errorf("resolving command sender status: %w", err)
	}
	if status == botapi.MemberStatusMember {
		logger.Debug("ignoring command from non-admin")
		return nil
	}
	if !(status == botapi.MemberStatusCreator && msg.From.ID == d.OwnerID) {
		res, err := d.CheckOwnership(ctx, chatID)
		if err != nil {
			return err
		}
		if res == OwnershipAbandon {
			return nil
		}
	}

	name, args, _ := msg.Command()
	commandsHandled.WithLabelValues("group", name).Inc()
	logger = logger.With("command", name)

	switch name {
	case "ban":
		if err := d.Store.SetGroupPolicy(ctx, chatID, policystore.SettingBanUsers, true); err != nil {
			return err
		}
		logger.Info("group policy changed", "banUsers", true)
		return d.reply(ctx, chatID, "Spamming users will be banned.")
	case "no_restrict":
		if err := d.Store.SetGroupPolicies(ctx, chatID,
			policystore.SettingChange{Setting: policystore.SettingBanUsers, Value: false},
			policystore.SettingChange{Setting: policystore.SettingUseMute, Value: false},
		); err != nil {
			return err
		}
		logger.Info("group policy changed", "banUsers", false, "useMute", false)
		return d.reply(ctx, chatID, "Spamming users will not be restricted.")
	case "mute":
		if err := d.Store.SetGroupPolicy(ctx, chatID, policystore.SettingUseMute, true); err != nil {
			return err
		}
		logger.Info("group policy changed", "useMute", true)
		return d.reply(ctx, chatID, "Spamming users will be muted.")
	case "set_spam_time":
		return d.setSpamTime(ctx, logger, chatID, args)
	case "set_restriction_time":
		return d.setRestrictionTime(ctx, logger, chatID, args)
	case "silent":
		return d.toggle(ctx, logger, chatID, policystore.SettingSilentMode, "Silent mode is now %s.")
	case "joining":
		return d.toggle(ctx, logger, chatID, policystore.SettingDisableJoining, "Deletion of join/leave messages is now %s.")
	case "clean_non_group_url_messages":
		return d.toggle(ctx, logger, chatID, policystore.SettingCleanNonGroupURL, "Deletion of links from non-members is now %s.")
	case "throttle_user":
		return d.throttleUser(ctx, chatID, msg, args)
	case "free_user":
		return d.freeUser(ctx, chatID, msg)
	case "stats":
		report, err := d.Engine.GroupStats(ctx, chatID)
		if err != nil {
			return fmt.Errorf("reading moderation counters: %w", err)
		}
		return d.reply(ctx, chatID, report)
	case "help":
		return d.reply(ctx, chatID, helpText(groupCommands))
	default:
		return d.reply(ctx, chatID, UnknownCommandReply)
	}
}

func (d *Dispatcher) setSpamTime(ctx context.Context, logger *slog.Logger, chatID int64, args string) error {
	invalid := fmt.Sprintf("Invalid time specified. Please provide a positive integer in seconds <= %d.", int(policystore.MaxSpamTimeWindow.Seconds()))
	seconds, err := strconv.ParseUint(args, 10, 8)
	if err != nil || seconds == 0 {
		return d.reply(ctx, chatID, invalid)
	}
	err = d.Store.SetGroupPolicy(ctx, chatID, policystore.SettingSpamTimeWindow, time.Duration(seconds)*time.Second)
	if errors.Is(err, policystore.ErrInvalidSetting) {
		return d.reply(ctx, chatID, invalid)
	} else if err != nil {
		return err
	}
	logger.Info("group policy changed", "spamTimeWindow", seconds)
	return d.reply(ctx, chatID, fmt.Sprintf("Spam time window set to %d seconds.", seconds))
}

func (d *Dispatcher) setRestrictionTime(ctx context.Context, logger *slog.Logger, chatID int64, args string) error {
	if args == "0" {
		if err := d.Store.SetGroupPolicy(ctx, chatID, policystore.SettingRestrictionDuration, nil); err != nil {
			return err
		}
		logger.Info("group policy changed", "restrictionDuration", "forever")
		return d.reply(ctx, chatID, "Restriction duration set to forever.")
	}
	invalid := "Invalid restriction duration specified. Please provide '0' for infinite or a positive integer in minutes."
	minutes, err := strconv.ParseUint(args, 10, 32)
	if err != nil || minutes == 0 || minutes > maxRestrictionMinutes {
		return d.reply(ctx, chatID, invalid)
	}
	err = d.Store.SetGroupPolicy(ctx, chatID, policystore.SettingRestrictionDuration, time.Duration(minutes)*time.Minute)
	if errors.Is(err, policystore.ErrInvalidSetting) {
		return d.reply(ctx, chatID, invalid)
	} else if err != nil {
		return err
	}
	logger.Info("group policy changed", "restrictionDuration", minutes)
	return d.reply(ctx, chatID, fmt.Sprintf("Restriction duration set to %d minutes.", minutes))
}

func (d *Dispatcher) toggle(ctx context.Context, logger *slog.Logger, chatID int64, setting policystore.Setting, format string) error {
	enabled, err := d.Store.ToggleGroupPolicy(ctx, chatID, setting)
	if err != nil {
		return err
	}
	logger.Info("group policy changed", setting.String(), enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return d.reply(ctx, chatID, fmt.Sprintf(format, state))
}

func (d *Dispatcher) throttleUser(ctx context.Context, chatID int64, msg *botapi.Message, args string) error {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		return d.reply(ctx, chatID, "Reply to a message of the user you want to throttle.")
	}
	invalid := fmt.Sprintf("Invalid throttle time specified. Please provide an integer number of seconds >= %d.", automod.MinThrottleSeconds)
	seconds, err := strconv.ParseUint(args, 10, 32)
	if err != nil {
		return d.reply(ctx, chatID, invalid)
	}
	who, err := d.Engine.ThrottleSender(ctx, chatID, msg.ReplyToMessage, uint(seconds))
	if errors.Is(err, automod.ErrThrottleTooShort) {
		return d.reply(ctx, chatID, invalid)
	} else if err != nil {
		return err
	}
	return d.reply(ctx, chatID, fmt.Sprintf("User %s is throttled: each message will be followed by %d seconds of silence.", who, seconds))
}

func (d *Dispatcher) freeUser(ctx context.Context, chatID int64, msg *botapi.Message) error {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		return d.reply(ctx, chatID, "Reply to a message of the user you want to free.")
	}
	who, err := d.Engine.FreeSender(ctx, chatID, msg.ReplyToMessage)
	if errors.Is(err, automod.ErrNotThrottled) {
		return d.reply(ctx, chatID, fmt.Sprintf("User %s is not throttled.", who))
	} else if err != nil {
		return err
	}
	return d.reply(ctx, chatID, fmt.Sprintf("User %s is no longer throttled.", who))
}
