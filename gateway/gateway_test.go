package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kekal/ModerationBot/botapi"

	"github.com/stretchr/testify/assert"
)

// wraps the mock client to observe overlap and timing of deleteMessage calls
type slowAPI struct {
	*botapi.MockClient
	hold  time.Duration
	block chan struct{}

	mu          sync.Mutex
	inflight    int
	maxInflight int
	starts      []time.Time
}

func (s *slowAPI) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()

	if s.block != nil {
		<-s.block
	} else {
		time.Sleep(s.hold)
	}

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	return s.MockClient.DeleteMessage(ctx, chatID, messageID)
}

func (s *slowAPI) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

func TestGatewaySerializes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	api := &slowAPI{MockClient: botapi.NewMockClient(), hold: 5 * time.Millisecond}
	delay := 20 * time.Millisecond
	g := New(api, delay, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(g.DeleteMessage(ctx, -100, i))
		}(i)
	}
	wg.Wait()

	assert.Equal(1, api.maxInflight)
	assert.Len(api.starts, 5)
	for i := 1; i < len(api.starts); i++ {
		assert.GreaterOrEqual(api.starts[i].Sub(api.starts[i-1]), delay)
	}
	assert.Len(api.CallsTo("deleteMessage"), 5)
}

func TestGatewayThrottledPassthrough(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mock := botapi.NewMockClient()
	g := New(mock, time.Millisecond, nil)

	injected := &botapi.Error{Code: 429, Description: "Too Many Requests: retry after 5", RetryAfter: 5}
	mock.FailNext("sendMessage", injected)

	_, err := g.SendMessage(ctx, -100, "hello", nil)
	var apiErr *botapi.Error
	assert.ErrorAs(err, &apiErr)
	assert.True(apiErr == injected)
	ra, ok := botapi.RetryAfter(err)
	assert.True(ok)
	assert.Equal(5*time.Second, ra)

	// exactly one underlying call, no internal retry
	assert.Len(mock.CallsTo("sendMessage"), 1)

	msg, err := g.SendMessage(ctx, -100, "hello again", nil)
	assert.NoError(err)
	assert.Equal("hello again", msg.Text)
}

func TestGatewayUpdatesBypassSlot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	api := &slowAPI{MockClient: botapi.NewMockClient(), block: make(chan struct{})}
	api.SetPending(botapi.Update{UpdateID: 77})
	g := New(api, 10*time.Millisecond, nil)

	held := make(chan struct{})
	go func() {
		defer close(held)
		g.DeleteMessage(ctx, -100, 1)
	}()
	assert.Eventually(func() bool { return api.inFlight() == 1 }, time.Second, time.Millisecond)

	done := make(chan []botapi.Update)
	go func() {
		updates, err := g.GetUpdates(ctx, -1, 0, 0, nil)
		assert.NoError(err)
		done <- updates
	}()

	select {
	case updates := <-done:
		assert.Len(updates, 1)
		assert.Equal(int64(77), updates[0].UpdateID)
	case <-time.After(2 * time.Second):
		t.Fatal("getUpdates blocked behind a moderation call")
	}

	close(api.block)
	<-held
}

func TestGatewayAcquireCancelled(t *testing.T) {
	assert := assert.New(t)

	api := &slowAPI{MockClient: botapi.NewMockClient(), block: make(chan struct{})}
	g := New(api, 0, nil)

	held := make(chan struct{})
	go func() {
		defer close(held)
		g.DeleteMessage(context.Background(), -100, 1)
	}()
	assert.Eventually(func() bool { return api.inFlight() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.LeaveChat(ctx, -100)
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.Empty(api.CallsTo("leaveChat"))

	close(api.block)
	<-held
}
