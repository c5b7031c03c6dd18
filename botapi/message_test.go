package botapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageCommand(t *testing.T) {
	testCases := []struct {
		name     string
		msg      Message
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{
			name:   "plain text",
			msg:    Message{Text: "hello"},
			wantOK: false,
		},
		{
			name:     "bare command",
			msg:      Message{Text: "/help", Entities: []MessageEntity{{Type: EntityBotCommand, Offset: 0, Length: 5}}},
			wantName: "help",
			wantOK:   true,
		},
		{
			name:     "addressed command with args",
			msg:      Message{Text: "/set_spam_time@moderator_bot  30 ", Entities: []MessageEntity{{Type: EntityBotCommand, Offset: 0, Length: 28}}},
			wantName: "set_spam_time",
			wantArgs: "30",
			wantOK:   true,
		},
		{
			name:     "utf16 offsets",
			msg:      Message{Text: "😀 /Ban now", Entities: []MessageEntity{{Type: EntityBotCommand, Offset: 3, Length: 4}}},
			wantName: "ban",
			wantArgs: "now",
			wantOK:   true,
		},
		{
			name:   "negative entity length",
			msg:    Message{Text: "/help me", Entities: []MessageEntity{{Type: EntityBotCommand, Offset: 5, Length: -3}}},
			wantOK: true,
		},
		{
			name:   "entity past the end",
			msg:    Message{Text: "/help", Entities: []MessageEntity{{Type: EntityBotCommand, Offset: 9, Length: 2}}},
			wantOK: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			name, args, ok := tc.msg.Command()
			assert.Equal(tc.wantOK, ok)
			assert.Equal(tc.wantName, name)
			assert.Equal(tc.wantArgs, args)
		})
	}
}

func TestMessageClassification(t *testing.T) {
	assert := assert.New(t)

	m := Message{Text: "see example.com", Entities: []MessageEntity{{Type: EntityURL, Offset: 4, Length: 11}}}
	assert.True(m.HasLink())
	m = Message{Caption: "pic", CaptionEntities: []MessageEntity{{Type: EntityTextLink, Offset: 0, Length: 3, URL: "https://example.com"}}}
	assert.True(m.HasLink())
	m = Message{Text: "no links"}
	assert.False(m.HasLink())

	assert.True((&Message{NewChatMembers: []User{{ID: 1}}}).IsMembershipNotice())
	assert.True((&Message{LeftChatMember: &User{ID: 1}}).IsMembershipNotice())
	assert.False((&Message{Text: "hi"}).IsMembershipNotice())

	reply := Message{ReplyToMessage: &Message{From: &User{ID: LinkedChannelProxyID}}}
	assert.True(reply.IsReplyToLinkedChannelPost())
	reply.ReplyToMessage.From.ID = 5
	assert.False(reply.IsReplyToLinkedChannelPost())

	ch := Message{From: &User{ID: ChannelAsUserID}, SenderChat: &Chat{ID: -100777, Type: ChatTypeChannel}}
	assert.True(ch.IsFromChannelAsUser())
	assert.Equal(int64(-100777), ch.SenderID())
	assert.Equal(int64(9), (&Message{From: &User{ID: 9}}).SenderID())
}

func TestDescribe(t *testing.T) {
	assert := assert.New(t)

	u := User{ID: 12, FirstName: "Ann", LastName: "Lee", Username: "ann", IsBot: true}
	assert.Equal("Ann Lee @ann (12) (bot)", u.Describe())
	c := Chat{ID: -100555, Username: "news"}
	assert.Equal("@news (-100555) (channel)", c.Describe())
}
