// Update loop for the moderation bot: long-polls platform updates, routes them to command handlers or the automod engine, and contains per-update failures.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kekal/ModerationBot/actionlog"
	"github.com/kekal/ModerationBot/automod"
	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/policystore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	PollLimit          = 100
	PollTimeoutSeconds = 60
	// extra wait on top of the platform's retry-after hint for rate-limited updates
	RateLimitMargin = 10 * time.Second
)

var allowedUpdates = []string{botapi.UpdateTypeMessage, botapi.UpdateTypeMyChatMember}

type Dispatcher struct {
	Logger    *slog.Logger
	Client    botapi.API
	Engine    *automod.Engine
	Store     *policystore.Store
	ActionLog *actionlog.Log
	// zero disables the owner checks
	OwnerID int64
	// defaults to a context-aware sleep; overridable for tests
	Sleep func(ctx context.Context, d time.Duration) error

	me     *botapi.User
	cursor int64
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return sleepCtx(ctx, dur)
}

// Cursor returns the identifier of the next update to fetch.
func (d *Dispatcher) Cursor() int64 {
	return d.cursor
}

// Start registers the command lists, identifies the bot, notifies the owner and probes the resume cursor.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.Client.SetMyCommands(ctx, groupCommands, botapi.ScopeAllGroupChats); err != nil {
		return fmt.Errorf("registering group commands: %w", err)
	}
	if err := d.Client.SetMyCommands(ctx, privateCommands(d.ActionLog.Size()), botapi.ScopeAllPrivateChats); err != nil {
		return fmt.Errorf("registering private commands: %w", err)
	}

	me, err := d.Client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("identifying bot: %w", err)
	}
	d.me = me
	d.Logger.Info(fmt.Sprintf("Start listening for @%s (%d)", me.Username, me.ID))
	d.NotifyOwner(ctx, fmt.Sprintf("Bot service @%s (%d) has been started", me.Username, me.ID))

	pending, err := d.Client.GetUpdates(ctx, -1, 0, 0, allowedUpdates)
	if err != nil {
		return fmt.Errorf("probing update cursor: %w", err)
	}
	if len(pending) > 0 {
		d.cursor = pending[len(pending)-1].UpdateID + 1
	}
	d.Logger.Info("resuming updates", "cursor", d.cursor)
	return nil
}

// Run starts the dispatcher and consumes updates until ctx is cancelled (returning nil), a command requests a stop (returning a *StopError), or polling fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := d.Client.GetUpdates(ctx, d.cursor, PollLimit, PollTimeoutSeconds, allowedUpdates)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("polling updates: %w", err)
		}
		for _, u := range updates {
			if ctx.Err() != nil {
				return nil
			}
			updatesReceived.Inc()
			err := d.HandleUpdate(ctx, u)
			// at-most-once: the cursor advances whatever the outcome
			d.cursor = u.UpdateID + 1
			lastUpdateID.Set(float64(u.UpdateID))
			if err != nil {
				return err
			}
		}
	}
}

// HandleUpdate processes a single update. Failures are logged and swallowed; only a *StopError is returned.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u botapi.Update) (err error) {
	ctx, span := tracer.Start(ctx, "HandleUpdate")
	defer span.End()
	span.SetAttributes(attribute.Int64("update.id", u.UpdateID))

	logger := d.Logger.With("update", u.UpdateID)
	start := time.Now()
	outcome := "ok"
	defer func() {
		updateHandleDuration.Observe(time.Since(start).Seconds())
		updatesHandled.WithLabelValues(outcome).Inc()
	}()

	// similar to an HTTP server, we want to recover any panics from update handling
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update handling exception", "err", r)
			span.SetStatus(codes.Error, "panic")
			outcome = "panic"
			err = nil
		}
	}()

	herr := d.route(ctx, logger, u)
	if herr == nil {
		return nil
	}
	span.RecordError(herr)

	var stop *StopError
	if errors.As(herr, &stop) {
		outcome = "stop"
		return stop
	}

	span.SetStatus(codes.Error, herr.Error())
	var apiErr *botapi.Error
	if errors.As(herr, &apiErr) {
		logger.Error(botapi.PrintAPIError(herr))
		if ra, ok := botapi.RetryAfter(herr); ok {
			outcome = "throttled"
			wait := ra + RateLimitMargin
			logger.Error(fmt.Sprintf("API rate limit exceeded. Retrying after %d seconds.", int(wait.Seconds())))
			if err := d.sleep(ctx, wait); err != nil {
				logger.Debug("rate limit wait interrupted", "err", err)
			}
			return nil
		}
		outcome = "api_error"
		return nil
	}
	outcome = "error"
	logger.Error("failed to handle update", "err", herr)
	return nil
}

func (d *Dispatcher) route(ctx context.Context, logger *slog.Logger, u botapi.Update) error {
	if cm := u.MyChatMember; cm != nil && d.me != nil && cm.NewChatMember.User.ID == d.me.ID && cm.NewChatMember.Status == botapi.MemberStatusAdministrator {
		logger.Info("promoted to administrator", "chat", cm.Chat.ID, "chatTitle", cm.Chat.Title)
		if _, err := d.CheckOwnership(ctx, cm.Chat.ID); err != nil {
			return err
		}
	}

	msg := u.Message
	if msg == nil || msg.From == nil || (d.me != nil && msg.From.ID == d.me.ID) {
		return nil
	}
	logger = logger.With("chat", msg.Chat.ID, "from", msg.From.ID)

	switch {
	case msg.Chat.Type == botapi.ChatTypePrivate:
		return d.handlePrivate(ctx, logger, msg)
	case msg.IsCommand():
		return d.handleGroupCommand(ctx, logger, msg)
	default:
		return d.Engine.ProcessMessage(ctx, msg)
	}
}

// NotifyOwner sends a best-effort private message to the configured owner.
func (d *Dispatcher) NotifyOwner(ctx context.Context, text string) {
	if d.OwnerID == 0 {
		return
	}
	if _, err := d.Client.SendMessage(ctx, d.OwnerID, text, nil); err != nil {
		d.Logger.Warn("failed to notify owner", "err", err)
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) error {
	_, err := d.Client.SendMessage(ctx, chatID, text, nil)
	return err
}
