package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/kekal/ModerationBot/util"
)

const DefaultHost = "https://api.telegram.org"

type Client struct {
	// Client is an HTTP client to use. If not set, defaults to util.RobustHTTPClient().
	Client    *http.Client
	Host      string
	Token     string
	UserAgent *string
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return util.RobustHTTPClient(util.LongPollTimeout)
	}
	return c.Client
}

type ResponseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	Description string              `json:"description,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// Error is a request the platform received and rejected.
type Error struct {
	Code            int
	Description     string
	RetryAfter      int
	MigrateToChatID int64
}

func (e *Error) Error() string {
	if e.IsThrottled() {
		return fmt.Sprintf("bot API error %d: %s (retry after %ds)", e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("bot API error %d: %s", e.Code, e.Description)
}

func (e *Error) IsThrottled() bool {
	return e.Code == http.StatusTooManyRequests && e.RetryAfter > 0
}

// Returns the platform-reported back-off if err (or anything it wraps) is a rate-limit rejection.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.IsThrottled() {
		return time.Duration(apiErr.RetryAfter) * time.Second, true
	}
	return 0, false
}

// Renders a single-line diagnostic for a platform error, including the migrate and retry hints when present.
func PrintAPIError(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "API Error: " + err.Error()
	}
	parts := []string{fmt.Sprintf("ErrorCode: %d", apiErr.Code)}
	if apiErr.MigrateToChatID != 0 {
		parts = append(parts, fmt.Sprintf("MigrateToChatId: %d", apiErr.MigrateToChatID))
	}
	if apiErr.RetryAfter != 0 {
		parts = append(parts, fmt.Sprintf("RetryAfter: %d", apiErr.RetryAfter))
	}
	parts = append(parts, apiErr.Description)
	return "API Error: " + strings.Join(parts, " | ")
}

// Calls a bot API method with a JSON-encoded body, decoding the result into out (if non-nil).
func (c *Client) Do(ctx context.Context, method string, params any, out any) error {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}

	uri := strings.TrimSuffix(host, "/") + "/bot" + c.Token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "modbot/"+versioninfo.Short())
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the token is part of the URL, so keep it out of wrapped url.Errors
		return fmt.Errorf("%s request failed: %w", method, redactToken(err, c.Token))
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &Error{Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !ar.OK {
		apiErr := &Error{
			Code:        ar.ErrorCode,
			Description: ar.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if ar.Parameters != nil {
			apiErr.RetryAfter = ar.Parameters.RetryAfter
			apiErr.MigrateToChatID = ar.Parameters.MigrateToChatID
		}
		return apiErr
	}

	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
