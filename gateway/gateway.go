// Serialized, paced access to the platform API.
//
// Every outbound call goes through a single-slot semaphore and is followed by a fixed delay before the slot is released, so at most one call is in flight and consecutive calls are spaced by at least the delay, no matter how many goroutines are calling.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/kekal/ModerationBot/botapi"

	"golang.org/x/sync/semaphore"
)

var DefaultDelay = 1 * time.Second

type Gateway struct {
	API    botapi.API
	Delay  time.Duration
	Logger *slog.Logger

	sem *semaphore.Weighted
}

var _ botapi.API = (*Gateway)(nil)

func New(api botapi.API, delay time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if delay < 0 {
		delay = 0
	}
	return &Gateway{
		API:    api,
		Delay:  delay,
		Logger: logger.With("component", "gateway"),
		sem:    semaphore.NewWeighted(1),
	}
}

// Invoke runs call while holding the gateway slot, then waits out the pacing delay before releasing it. Errors from call are returned unmodified; the gateway never retries.
func Invoke[T any](ctx context.Context, g *Gateway, method string, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer g.sem.Release(1)
	waitDuration.Observe(time.Since(start).Seconds())

	out, err := timedCall(ctx, g, method, call)
	g.pause(ctx)
	return out, err
}

func (g *Gateway) do(ctx context.Context, method string, call func(ctx context.Context) error) error {
	_, err := Invoke(ctx, g, method, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}

func timedCall[T any](ctx context.Context, g *Gateway, method string, call func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := call(ctx)
	callDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		if ra, ok := botapi.RetryAfter(err); ok {
			status = "throttled"
			throttledCount.Inc()
			g.Logger.Warn("platform rate limit hit", "method", method, "retryAfter", ra)
		}
	}
	callCount.WithLabelValues(method, status).Inc()
	return out, err
}

// waits the pacing delay, giving up early if ctx is done
func (g *Gateway) pause(ctx context.Context) {
	if g.Delay <= 0 {
		return
	}
	t := time.NewTimer(g.Delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
