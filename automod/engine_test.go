package automod

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/policystore"

	"github.com/stretchr/testify/assert"
)

const testChat int64 = -1001234567890

var spammer = botapi.User{ID: 555, FirstName: "Spam", Username: "spammer"}

// hands out a single shared channel from ReversalScheduler.After, so tests decide when timers fire
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fire   chan time.Time
}

func newFakeTimers(rs *ReversalScheduler) *fakeTimers {
	ft := &fakeTimers{fire: make(chan time.Time)}
	rs.After = ft.after
	return ft
}

func (ft *fakeTimers) after(d time.Duration) <-chan time.Time {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.delays = append(ft.delays, d)
	return ft.fire
}

func (ft *fakeTimers) scheduled() []time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]time.Duration(nil), ft.delays...)
}

func TestSpamDefaultMute(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()

	msg := ChannelReplyFixture(testChat, spammer, 2*time.Second)
	assert.NoError(eng.ProcessMessage(ctx, msg))

	deletes := client.CallsTo("deleteMessage")
	assert.Len(deletes, 1)
	assert.Equal(101, deletes[0].MessageID)

	restricts := client.CallsTo("restrictChatMember")
	assert.Len(restricts, 1)
	assert.Equal(spammer.ID, restricts[0].UserID)
	assert.Equal(botapi.ChatPermissions{}, *restricts[0].Permissions)
	assert.Equal(FixtureNow.Add(24*time.Hour), restricts[0].Until)
	assert.Empty(client.CallsTo("banChatMember"))

	notices := client.CallsTo("sendMessage")
	assert.Len(notices, 1)
	assert.Equal("User Spam @spammer (555) has been muted for 24 hours.", notices[0].Text)
	assert.Equal(101, notices[0].Opts.ReplyToMessageID)
	assert.True(notices[0].Opts.DisableNotification)
	assert.True(notices[0].Opts.AllowSendingWithoutReply)

	stats, err := eng.GroupStats(ctx, testChat)
	assert.NoError(err)
	assert.Contains(stats, "Spam messages removed: 1 / 1")
	assert.Contains(stats, "Users muted: 1 / 1")
	assert.Contains(stats, "Distinct offenders: 1 / 1")
}

func TestSpamBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingBanUsers, true))

	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, 2*time.Second)))

	bans := client.CallsTo("banChatMember")
	assert.Len(bans, 1)
	assert.Equal(spammer.ID, bans[0].UserID)
	assert.Equal(FixtureNow.Add(24*time.Hour), bans[0].Until)
	assert.False(bans[0].Revoke)
	assert.Empty(client.CallsTo("restrictChatMember"))

	notices := client.CallsTo("sendMessage")
	assert.Len(notices, 1)
	assert.Contains(notices[0].Text, "banned")
	assert.Contains(notices[0].Text, "24 hours")
}

func TestSpamPolicyVariants(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// permanent restriction
	eng, client := EngineTestFixture()
	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingRestrictionDuration, nil))
	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, time.Second)))
	restricts := client.CallsTo("restrictChatMember")
	assert.Len(restricts, 1)
	assert.True(restricts[0].Until.IsZero())
	assert.Contains(client.CallsTo("sendMessage")[0].Text, "muted for forever")

	// silent mode: no notice
	eng, client = EngineTestFixture()
	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingSilentMode, true))
	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, time.Second)))
	assert.Len(client.CallsTo("deleteMessage"), 1)
	assert.Len(client.CallsTo("restrictChatMember"), 1)
	assert.Empty(client.CallsTo("sendMessage"))

	// no_restrict: delete only
	eng, client = EngineTestFixture()
	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingUseMute, false))
	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, time.Second)))
	assert.Len(client.CallsTo("deleteMessage"), 1)
	assert.Empty(client.CallsTo("restrictChatMember"))
	assert.Empty(client.CallsTo("banChatMember"))
	assert.Empty(client.CallsTo("sendMessage"))

	// 90 minute restriction
	eng, client = EngineTestFixture()
	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingRestrictionDuration, 90*time.Minute))
	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, time.Second)))
	assert.Equal(FixtureNow.Add(90*time.Minute), client.CallsTo("restrictChatMember")[0].Until)
	assert.Contains(client.CallsTo("sendMessage")[0].Text, "1.5 hours")
}

func TestNotSpam(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()

	// outside the window
	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, 30*time.Second)))

	// window is a strict bound
	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, 10*time.Second)))

	// reply to an ordinary member
	msg := ChannelReplyFixture(testChat, spammer, time.Second)
	msg.ReplyToMessage.From = &botapi.User{ID: 777}
	assert.NoError(eng.ProcessMessage(ctx, msg))

	// not a reply
	msg = ChannelReplyFixture(testChat, spammer, time.Second)
	msg.ReplyToMessage = nil
	assert.NoError(eng.ProcessMessage(ctx, msg))

	assert.Empty(client.CallsTo("deleteMessage"))
	assert.Empty(client.CallsTo("sendMessage"))
}

func TestSpamChannelSender(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	client.SetChat(botapi.Chat{ID: -1009, Type: botapi.ChatTypeChannel, Username: "spamchan"})

	msg := ChannelReplyFixture(testChat, botapi.User{ID: botapi.ChannelAsUserID, FirstName: "Channel"}, time.Second)
	msg.SenderChat = &botapi.Chat{ID: -1009, Type: botapi.ChatTypeChannel}
	assert.NoError(eng.ProcessMessage(ctx, msg))

	bans := client.CallsTo("banChatSenderChat")
	assert.Len(bans, 1)
	assert.Equal(int64(-1009), bans[0].UserID)
	assert.Empty(client.CallsTo("restrictChatMember"))
	assert.Equal("User @spamchan (-1009) (channel) has been muted for 24 hours.", client.CallsTo("sendMessage")[0].Text)

	// second hit resolves the sender chat from cache
	assert.NoError(eng.ProcessMessage(ctx, msg))
	assert.Len(client.CallsTo("getChat"), 1)
}

func TestThrottleShort(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	ft := newFakeTimers(eng.Reversals)

	perms := botapi.DefaultMemberPermissions()
	perms.CanSendPolls = false
	assert.NoError(eng.Store.SetUserThrottle(ctx, testChat, spammer.ID, 15, perms))

	// throttle pre-empts the spam check
	msg := ChannelReplyFixture(testChat, spammer, time.Second)
	assert.NoError(eng.ProcessMessage(ctx, msg))
	assert.Empty(client.CallsTo("deleteMessage"))

	restricts := client.CallsTo("restrictChatMember")
	assert.Len(restricts, 1)
	assert.Equal(botapi.ChatPermissions{}, *restricts[0].Permissions)
	assert.Equal(FixtureNow.Add(15*time.Second), restricts[0].Until)

	assert.Equal([]time.Duration{15 * time.Second}, ft.scheduled())
	key := ReversalKey{ChatID: testChat, SenderID: spammer.ID}
	assert.True(eng.Reversals.Pending(key))

	// nothing is restored before the timer fires
	time.Sleep(10 * time.Millisecond)
	assert.Len(client.CallsTo("restrictChatMember"), 1)

	ft.fire <- FixtureNow.Add(15 * time.Second)
	eng.Reversals.Wait()

	restricts = client.CallsTo("restrictChatMember")
	assert.Len(restricts, 2)
	assert.Equal(perms, *restricts[1].Permissions)
	assert.True(restricts[1].Until.IsZero())
	assert.False(eng.Reversals.Pending(key))

	// the throttle itself persists until freed
	_, ok := eng.Store.GetUserThrottle(testChat, spammer.ID)
	assert.True(ok)
}

func TestThrottleLong(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	ft := newFakeTimers(eng.Reversals)

	assert.NoError(eng.Store.SetUserThrottle(ctx, testChat, spammer.ID, 90, botapi.DefaultMemberPermissions()))
	msg := ChannelReplyFixture(testChat, spammer, time.Minute)
	assert.NoError(eng.ProcessMessage(ctx, msg))

	restricts := client.CallsTo("restrictChatMember")
	assert.Len(restricts, 1)
	assert.Equal(FixtureNow.Add(90*time.Second), restricts[0].Until)
	assert.Empty(ft.scheduled())
	assert.False(eng.Reversals.Pending(ReversalKey{ChatID: testChat, SenderID: spammer.ID}))
}

func TestThrottleChannelSender(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	ft := newFakeTimers(eng.Reversals)

	assert.NoError(eng.Store.SetUserThrottle(ctx, testChat, -1009, 20, botapi.DefaultMemberPermissions()))
	msg := ChannelReplyFixture(testChat, botapi.User{ID: botapi.ChannelAsUserID}, time.Hour)
	msg.SenderChat = &botapi.Chat{ID: -1009, Type: botapi.ChatTypeChannel}
	assert.NoError(eng.ProcessMessage(ctx, msg))

	assert.Len(client.CallsTo("banChatSenderChat"), 1)
	close(ft.fire)
	eng.Reversals.Wait()
	unbans := client.CallsTo("unbanChatSenderChat")
	assert.Len(unbans, 1)
	assert.Equal(int64(-1009), unbans[0].UserID)
}

func TestThrottleCommands(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	ft := newFakeTimers(eng.Reversals)

	groupPerms := botapi.DefaultMemberPermissions()
	groupPerms.CanChangeInfo = false
	client.SetChat(botapi.Chat{ID: testChat, Type: botapi.ChatTypeSupergroup, Permissions: &groupPerms})
	target := &botapi.Message{MessageID: 5, From: &spammer, Chat: botapi.Chat{ID: testChat}}

	_, err := eng.ThrottleSender(ctx, testChat, target, 9)
	assert.ErrorIs(err, ErrThrottleTooShort)

	who, err := eng.ThrottleSender(ctx, testChat, target, 30)
	assert.NoError(err)
	assert.Equal("Spam @spammer (555)", who)
	ts, ok := eng.Store.GetUserThrottle(testChat, spammer.ID)
	assert.True(ok)
	assert.Equal(uint(30), ts.ThrottleSeconds)
	assert.Equal(groupPerms, ts.DefaultPermissions)

	// next message gets restricted, and a reversal is scheduled
	assert.NoError(eng.ProcessMessage(ctx, &botapi.Message{MessageID: 6, From: &spammer, Chat: botapi.Chat{ID: testChat}, Date: FixtureNow.Unix()}))
	key := ReversalKey{ChatID: testChat, SenderID: spammer.ID}
	assert.True(eng.Reversals.Pending(key))

	_, err = eng.FreeSender(ctx, testChat, target)
	assert.NoError(err)
	assert.False(eng.Reversals.Pending(key))
	_, ok = eng.Store.GetUserThrottle(testChat, spammer.ID)
	assert.False(ok)

	restricts := client.CallsTo("restrictChatMember")
	assert.Len(restricts, 2)
	assert.Equal(groupPerms, *restricts[1].Permissions)

	// the cancelled reversal never runs
	close(ft.fire)
	eng.Reversals.Wait()
	assert.Len(client.CallsTo("restrictChatMember"), 2)

	_, err = eng.FreeSender(ctx, testChat, target)
	assert.ErrorIs(err, ErrNotThrottled)
}

func TestThrottleSenderCachedChat(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()

	groupPerms := botapi.DefaultMemberPermissions()
	groupPerms.CanPinMessages = false
	client.SetChat(botapi.Chat{ID: testChat, Type: botapi.ChatTypeSupergroup, Permissions: &groupPerms})
	other := botapi.User{ID: 556, FirstName: "Other"}

	_, err := eng.ThrottleSender(ctx, testChat, &botapi.Message{MessageID: 5, From: &spammer, Chat: botapi.Chat{ID: testChat}}, 30)
	assert.NoError(err)
	_, err = eng.ThrottleSender(ctx, testChat, &botapi.Message{MessageID: 6, From: &other, Chat: botapi.Chat{ID: testChat}}, 60)
	assert.NoError(err)

	// the second throttle reads the group permissions from the cache
	assert.Len(client.CallsTo("getChat"), 1)
	ts, ok := eng.Store.GetUserThrottle(testChat, other.ID)
	assert.True(ok)
	assert.Equal(groupPerms, ts.DefaultPermissions)
}

func TestNonMemberLink(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingCleanNonGroupURL, true))
	client.SetMember(testChat, botapi.ChatMember{Status: botapi.MemberStatusLeft, User: spammer})

	// well outside the spam window
	msg := ChannelReplyFixture(testChat, spammer, time.Hour)
	msg.Text = "see https://x.io"
	msg.Entities = []botapi.MessageEntity{{Type: botapi.EntityURL, Offset: 4, Length: 12}}
	assert.NoError(eng.ProcessMessage(ctx, msg))

	assert.Len(client.CallsTo("deleteMessage"), 1)
	assert.Len(client.CallsTo("restrictChatMember"), 1)
	notices := client.CallsTo("sendMessage")
	assert.Len(notices, 2)
	assert.Contains(notices[0].Text, "muted")
	assert.Equal(NonMemberLinkNotice, notices[1].Text)

	// members fall through to the window check
	client.Reset()
	member := botapi.User{ID: 556, FirstName: "Regular"}
	msg = ChannelReplyFixture(testChat, member, time.Hour)
	msg.Text = "see https://x.io"
	msg.Entities = []botapi.MessageEntity{{Type: botapi.EntityURL, Offset: 4, Length: 12}}
	assert.NoError(eng.ProcessMessage(ctx, msg))
	assert.Len(client.CallsTo("getChatMember"), 1)
	assert.Empty(client.CallsTo("deleteMessage"))
}

func TestMembershipNotices(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()

	notice := &botapi.Message{
		MessageID:      9,
		From:           &spammer,
		Chat:           botapi.Chat{ID: testChat, Type: botapi.ChatTypeSupergroup},
		NewChatMembers: []botapi.User{spammer},
	}
	assert.NoError(eng.ProcessMessage(ctx, notice))
	assert.Empty(client.CallsTo("deleteMessage"))

	assert.NoError(eng.Store.SetGroupPolicy(ctx, testChat, policystore.SettingDisableJoining, true))
	assert.NoError(eng.ProcessMessage(ctx, notice))
	deletes := client.CallsTo("deleteMessage")
	assert.Len(deletes, 1)
	assert.Equal(9, deletes[0].MessageID)
}

func TestDisengaged(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	eng.Store.SetEngaged(ctx, false)

	assert.NoError(eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, time.Second)))
	assert.Empty(client.Calls())
}

func TestPlatformErrorsPropagate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()

	apiErr := &botapi.Error{Code: 400, Description: "Bad Request: message to delete not found"}
	client.FailNext("deleteMessage", apiErr)
	err := eng.ProcessMessage(ctx, ChannelReplyFixture(testChat, spammer, time.Second))
	var got *botapi.Error
	assert.ErrorAs(err, &got)
	assert.Equal(400, got.Code)
	assert.Empty(client.CallsTo("restrictChatMember"))
}

func TestReversalProcessCancel(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	rs := NewReversalScheduler(ctx, nil)
	ft := newFakeTimers(rs)

	ran := false
	rs.Schedule(ReversalKey{ChatID: 1, SenderID: 2}, 15*time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	cancel()
	rs.Wait()
	assert.False(ran)
	assert.Len(ft.scheduled(), 1)
}

func TestReversalReplace(t *testing.T) {
	assert := assert.New(t)

	rs := NewReversalScheduler(context.Background(), nil)
	ft := newFakeTimers(rs)
	key := ReversalKey{ChatID: 1, SenderID: 2}

	var mu sync.Mutex
	runs := []string{}
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			runs = append(runs, name)
			return nil
		}
	}
	rs.Schedule(key, 15*time.Second, record("first"))
	rs.Schedule(key, 20*time.Second, record("second"))
	assert.False(rs.Cancel(ReversalKey{ChatID: 1, SenderID: 3}))

	close(ft.fire)
	rs.Wait()
	assert.Equal([]string{"second"}, runs)
	assert.False(rs.Pending(key))
}

func TestReversalCancelAfterFire(t *testing.T) {
	assert := assert.New(t)

	rs := NewReversalScheduler(context.Background(), nil)
	fired := make(chan time.Time)
	close(fired)
	rs.After = func(d time.Duration) <-chan time.Time { return fired }
	key := ReversalKey{ChatID: 1, SenderID: 2}
	noop := func(ctx context.Context) error { return nil }

	// the timer and the cancellation are both ready, so the goroutine may
	// reach the pending map after Cancel already removed the key
	for i := 0; i < 200; i++ {
		rs.Schedule(key, 15*time.Second, noop)
		rs.Cancel(key)
		rs.Wait()
		assert.False(rs.Pending(key), "iteration %d", i)
	}
	assert.NotPanics(func() {
		rs.Schedule(key, 15*time.Second, noop)
		rs.Schedule(key, 15*time.Second, noop)
		rs.Wait()
	})
	assert.False(rs.Pending(key))
}

func TestFormatting(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("24 hours", FormatRestriction(24*time.Hour, true))
	assert.Equal("0.5 hours", FormatRestriction(30*time.Minute, true))
	assert.Equal("forever", FormatRestriction(0, false))

	assert.Equal("https://t.me/c/1234567890/101", DeepLink(-1001234567890, 101))
	assert.Equal("https://t.me/c/-4567/3", DeepLink(-4567, 3))
}
