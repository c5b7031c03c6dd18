package botapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T, handler func(method string, body map[string]any) (int, string)) (*Client, *httptest.Server) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatal(err)
		}
		method := r.URL.Path[len("/botTOKEN/"):]
		status, resp := handler(method, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, resp)
	}))
	t.Cleanup(srv.Close)
	return &Client{Client: srv.Client(), Host: srv.URL, Token: "TOKEN"}, srv
}

func TestClientGetMe(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, _ := testServer(t, func(method string, body map[string]any) (int, string) {
		assert.Equal("getMe", method)
		return 200, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Mod","username":"mod_bot"}}`
	})

	me, err := c.GetMe(ctx)
	assert.NoError(err)
	assert.Equal(int64(42), me.ID)
	assert.Equal("mod_bot", me.Username)
}

func TestClientRateLimitError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, _ := testServer(t, func(method string, body map[string]any) (int, string) {
		return 429, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`
	})

	err := c.DeleteMessage(ctx, -100123, 5)
	assert.Error(err)
	var apiErr *Error
	assert.ErrorAs(err, &apiErr)
	assert.True(apiErr.IsThrottled())

	wait, ok := RetryAfter(fmt.Errorf("wrapped: %w", err))
	assert.True(ok)
	assert.Equal(7*time.Second, wait)
	assert.Contains(PrintAPIError(err), "RetryAfter: 7")
}

func TestClientPlatformError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, _ := testServer(t, func(method string, body map[string]any) (int, string) {
		return 400, `{"ok":false,"error_code":400,"description":"Bad Request: group chat was upgraded to a supergroup chat","parameters":{"migrate_to_chat_id":-100999}}`
	})

	_, err := c.SendMessage(ctx, -5, "hello", nil)
	var apiErr *Error
	assert.ErrorAs(err, &apiErr)
	assert.False(apiErr.IsThrottled())
	assert.Equal(int64(-100999), apiErr.MigrateToChatID)
	_, ok := RetryAfter(err)
	assert.False(ok)
	assert.Contains(PrintAPIError(err), "MigrateToChatId: -100999")
}

func TestClientRequestBodies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var got map[string]any
	c, _ := testServer(t, func(method string, body map[string]any) (int, string) {
		got = body
		return 200, `{"ok":true,"result":true}`
	})

	until := time.Unix(1700000000, 0)
	assert.NoError(c.RestrictChatMember(ctx, -100, 7, ChatPermissions{}, until))
	assert.Equal(float64(1700000000), got["until_date"])
	perms := got["permissions"].(map[string]any)
	assert.Equal(false, perms["can_send_messages"])
	assert.Len(perms, 14)

	assert.NoError(c.BanChatMember(ctx, -100, 7, time.Time{}, false))
	assert.Equal(float64(0), got["until_date"])

	_, err := c.SendMessage(ctx, -100, "notice", &SendOptions{ReplyToMessageID: 9, AllowSendingWithoutReply: true, DisableNotification: true})
	assert.Error(err) // result "true" does not decode into a Message
	reply := got["reply_parameters"].(map[string]any)
	assert.Equal(float64(9), reply["message_id"])
	assert.Equal(true, got["disable_notification"])
}

func TestClientGetUpdates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, _ := testServer(t, func(method string, body map[string]any) (int, string) {
		assert.Equal(float64(11), body["offset"])
		assert.Equal(float64(100), body["limit"])
		assert.Equal([]any{"message", "my_chat_member"}, body["allowed_updates"])
		return 200, `{"ok":true,"result":[{"update_id":11,"message":{"message_id":1,"date":1,"chat":{"id":-100,"type":"supergroup"},"text":"hi"}}]}`
	})

	updates, err := c.GetUpdates(ctx, 11, 100, 60, []string{UpdateTypeMessage, UpdateTypeMyChatMember})
	assert.NoError(err)
	assert.Len(updates, 1)
	assert.Equal("hi", updates[0].Message.Text)
	assert.True(updates[0].Message.Chat.IsGroup())
}
