package dispatcher

import (
	"context"
	"fmt"

	"github.com/kekal/ModerationBot/botapi"
)

type OwnershipResult int

const (
	OwnershipProceed OwnershipResult = iota
	// chat is not owned by the bot owner; the bot has left it
	OwnershipAbandon
)

const NotOwnedNotice = "This chat does not belong to bot owner."

// CheckOwnership verifies that the creator of a group is the configured owner. If not, the bot posts a notice and leaves the chat.
func (d *Dispatcher) CheckOwnership(ctx context.Context, chatID int64) (OwnershipResult, error) {
	if d.OwnerID == 0 {
		return OwnershipProceed, nil
	}
	admins, err := d.Client.GetChatAdministrators(ctx, chatID)
	if err != nil {
		return OwnershipProceed, fmt.Errorf("listing administrators: %w", err)
	}
	if len(admins) == 0 {
		return OwnershipProceed, ErrNotAdmin
	}

	var creator int64
	for _, a := range admins {
		if a.Status == botapi.MemberStatusCreator {
			creator = a.User.ID
			break
		}
	}
	if creator == d.OwnerID {
		return OwnershipProceed, nil
	}

	ownershipViolations.Inc()
	d.Logger.Warn("leaving chat not owned by bot owner", "chat", chatID, "creator", creator)
	if _, err := d.Client.SendMessage(ctx, chatID, NotOwnedNotice, &botapi.SendOptions{DisableNotification: true}); err != nil {
		return OwnershipAbandon, err
	}
	if err := d.Client.LeaveChat(ctx, chatID); err != nil {
		return OwnershipAbandon, err
	}
	if d.Engine != nil && d.Engine.Cache != nil {
		if err := d.Engine.Cache.Purge(ctx, chatID); err != nil {
			d.Logger.Warn("failed to purge cached chat", "chat", chatID, "err", err)
		}
	}
	return OwnershipAbandon, nil
}

// Resolves the moderation role of a user in a group: creator, administrator (with restrict rights, or anonymous), or member.
func (d *Dispatcher) memberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	if userID == botapi.GroupAnonymousAdminID {
		return botapi.MemberStatusAdministrator, nil
	}
	cm, err := d.Client.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return "", err
	}
	switch {
	case cm.Status == botapi.MemberStatusCreator:
		return botapi.MemberStatusCreator, nil
	case cm.Status == botapi.MemberStatusAdministrator && cm.CanRestrictMembers:
		return botapi.MemberStatusAdministrator, nil
	}
	return botapi.MemberStatusMember, nil
}
