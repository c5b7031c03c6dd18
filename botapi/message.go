package botapi

import (
	"strings"
	"unicode/utf16"
)

// Entity offsets and lengths are expressed in UTF-16 code units.
func entityText(text string, ent MessageEntity) string {
	units := utf16.Encode([]rune(text))
	start := ent.Offset
	end := ent.Offset + ent.Length
	if start < 0 || start > len(units) {
		return ""
	}
	if end > len(units) {
		end = len(units)
	}
	if end < start {
		return ""
	}
	return string(utf16.Decode(units[start:end]))
}

func textAfterEntity(text string, ent MessageEntity) string {
	units := utf16.Encode([]rune(text))
	end := ent.Offset + ent.Length
	if ent.Length < 0 || end < 0 || end >= len(units) {
		return ""
	}
	return string(utf16.Decode(units[end:]))
}

// Returns the first bot_command entity of the message text, if any.
func (m *Message) CommandEntity() (MessageEntity, bool) {
	for _, ent := range m.Entities {
		if ent.Type == EntityBotCommand {
			return ent, true
		}
	}
	return MessageEntity{}, false
}

func (m *Message) IsCommand() bool {
	_, ok := m.CommandEntity()
	return ok
}

// Extracts the command name (lowercase, without leading slash or "@botname" suffix) and the trimmed argument string.
func (m *Message) Command() (name string, args string, ok bool) {
	ent, ok := m.CommandEntity()
	if !ok {
		return "", "", false
	}
	raw := entityText(m.Text, ent)
	raw = strings.TrimPrefix(raw, "/")
	if i := strings.Index(raw, "@"); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(raw), strings.TrimSpace(textAfterEntity(m.Text, ent)), true
}

// True for service messages announcing members joining or leaving.
func (m *Message) IsMembershipNotice() bool {
	return len(m.NewChatMembers) > 0 || m.LeftChatMember != nil
}

// True if the text or caption carries a url or text_link entity.
func (m *Message) HasLink() bool {
	for _, l := range [][]MessageEntity{m.Entities, m.CaptionEntities} {
		for _, ent := range l {
			if ent.Type == EntityURL || ent.Type == EntityTextLink {
				return true
			}
		}
	}
	return false
}

// True if this message replies to a post forwarded from the group's linked channel.
func (m *Message) IsReplyToLinkedChannelPost() bool {
	return m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && m.ReplyToMessage.From.ID == LinkedChannelProxyID
}

// True if a channel posted this message as itself.
func (m *Message) IsFromChannelAsUser() bool {
	return m.From != nil && m.From.ID == ChannelAsUserID && m.SenderChat != nil
}

// Identity moderation state is keyed by: the sender-chat for channels posting as themselves, otherwise the user.
func (m *Message) SenderID() int64 {
	if m.IsFromChannelAsUser() {
		return m.SenderChat.ID
	}
	if m.From == nil {
		return 0
	}
	return m.From.ID
}

// Human-readable description of a user, as used in notices and logs.
func (u *User) Describe() string {
	s := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		s += " @" + u.Username
	}
	s += " (" + formatID(u.ID) + ")"
	if u.IsBot {
		s += " (bot)"
	}
	return s
}

// Human-readable description of a channel.
func (c *Chat) Describe() string {
	s := ""
	if c.Username != "" {
		s = "@" + c.Username + " "
	} else if c.Title != "" {
		s = c.Title + " "
	}
	return s + "(" + formatID(c.ID) + ") (channel)"
}
