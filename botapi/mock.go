package botapi

import (
	"context"
	"sync"
	"time"
)

// A recorded invocation of the mock client.
type Call struct {
	Method      string
	ChatID      int64
	UserID      int64
	MessageID   int
	Text        string
	Opts        *SendOptions
	Permissions *ChatPermissions
	Until       time.Time
	Revoke      bool
	Offset      int64
	Limit       int
	Timeout     int
	Commands    []BotCommand
	Scope       BotCommandScope
}

type memberKey struct {
	chatID int64
	userID int64
}

// A fake platform client, for use in tests.
//
// Records every call, serves canned members/administrators/chats, and hands out queued update batches. Safe for concurrent use.
type MockClient struct {
	mu       sync.Mutex
	Me       User
	members  map[memberKey]ChatMember
	admins   map[int64][]ChatMember
	chats    map[int64]Chat
	pending  []Update
	batches  [][]Update
	failures map[string][]error
	calls    []Call
	nextID   int
	drained  chan struct{}
	isDrain  bool
}

var _ API = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		Me:       User{ID: 424242, IsBot: true, FirstName: "Moderator", Username: "moderator_bot"},
		members:  make(map[memberKey]ChatMember),
		admins:   make(map[int64][]ChatMember),
		chats:    make(map[int64]Chat),
		failures: make(map[string][]error),
		nextID:   1000,
		drained:  make(chan struct{}),
	}
}

func (m *MockClient) SetMember(chatID int64, member ChatMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[memberKey{chatID, member.User.ID}] = member
}

func (m *MockClient) SetAdministrators(chatID int64, admins ...ChatMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[chatID] = admins
	for _, a := range admins {
		m.members[memberKey{chatID, a.User.ID}] = a
	}
}

func (m *MockClient) SetChat(chat Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
}

// Updates returned by the zero-limit cursor probe.
func (m *MockClient) SetPending(updates ...Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = updates
}

// Queues one batch for a future long-poll. Once all batches are consumed, GetUpdates blocks until its context is cancelled.
func (m *MockClient) QueueUpdates(batch ...Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
}

// Closed once a long-poll finds no queued batches.
func (m *MockClient) Drained() <-chan struct{} {
	return m.drained
}

// Makes the next call to method fail with err. Multiple failures queue up in order.
func (m *MockClient) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = append(m.failures[method], err)
}

func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) CallsTo(method string) []Call {
	out := []Call{}
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockClient) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if q := m.failures[c.Method]; len(q) > 0 {
		m.failures[c.Method] = q[1:]
		return q[0]
	}
	return nil
}

func (m *MockClient) GetMe(ctx context.Context) (*User, error) {
	if err := m.record(Call{Method: "getMe"}); err != nil {
		return nil, err
	}
	me := m.Me
	return &me, nil
}

func (m *MockClient) GetUpdates(ctx context.Context, offset int64, limit, timeoutSeconds int, allowedTypes []string) ([]Update, error) {
	if err := m.record(Call{Method: "getUpdates", Offset: offset, Limit: limit, Timeout: timeoutSeconds}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if limit == 0 {
		out := m.pending
		m.mu.Unlock()
		return out, nil
	}
	if len(m.batches) > 0 {
		out := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return out, nil
	}
	if !m.isDrain {
		m.isDrain = true
		close(m.drained)
	}
	m.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *MockClient) SetMyCommands(ctx context.Context, commands []BotCommand, scope BotCommandScope) error {
	return m.record(Call{Method: "setMyCommands", Commands: commands, Scope: scope})
}

func (m *MockClient) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	if err := m.record(Call{Method: "sendMessage", ChatID: chatID, Text: text, Opts: opts}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()
	return &Message{MessageID: id, Chat: Chat{ID: chatID}, Text: text, Date: time.Now().Unix()}, nil
}

func (m *MockClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return m.record(Call{Method: "deleteMessage", ChatID: chatID, MessageID: messageID})
}

func (m *MockClient) BanChatMember(ctx context.Context, chatID, userID int64, until time.Time, revokeMessages bool) error {
	return m.record(Call{Method: "banChatMember", ChatID: chatID, UserID: userID, Until: until, Revoke: revokeMessages})
}

func (m *MockClient) BanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return m.record(Call{Method: "banChatSenderChat", ChatID: chatID, UserID: senderChatID})
}

func (m *MockClient) UnbanChatSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return m.record(Call{Method: "unbanChatSenderChat", ChatID: chatID, UserID: senderChatID})
}

func (m *MockClient) RestrictChatMember(ctx context.Context, chatID, userID int64, permissions ChatPermissions, until time.Time) error {
	return m.record(Call{Method: "restrictChatMember", ChatID: chatID, UserID: userID, Permissions: &permissions, Until: until})
}

func (m *MockClient) GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error) {
	if err := m.record(Call{Method: "getChatAdministrators", ChatID: chatID}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatMember, len(m.admins[chatID]))
	copy(out, m.admins[chatID])
	return out, nil
}

func (m *MockClient) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	if err := m.record(Call{Method: "getChat", ChatID: chatID}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		chat = Chat{ID: chatID}
	}
	return &chat, nil
}

// Unknown users are reported as ordinary members.
func (m *MockClient) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	if err := m.record(Call{Method: "getChatMember", ChatID: chatID, UserID: userID}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[memberKey{chatID, userID}]
	if !ok {
		member = ChatMember{Status: MemberStatusMember, User: User{ID: userID}}
	}
	return &member, nil
}

func (m *MockClient) LeaveChat(ctx context.Context, chatID int64) error {
	return m.record(Call{Method: "leaveChat", ChatID: chatID})
}
