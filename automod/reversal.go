package automod

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Identifies the target of a pending reversal: a sender (user, or sender chat) in a group.
type ReversalKey struct {
	ChatID   int64
	SenderID int64
}

func (k ReversalKey) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.SenderID)
}

type pendingReversal struct {
	cancel context.CancelFunc
}

// ReversalScheduler runs deferred actions (lifting a throttle restriction) after a delay.
//
// At most one reversal is pending per key: scheduling again replaces the previous one. All reversals are bound to the context passed at construction; once it is cancelled, pending actions are skipped silently. Pending reversals live only in memory and do not survive a restart.
type ReversalScheduler struct {
	Logger *slog.Logger
	// overridable for tests
	After func(d time.Duration) <-chan time.Time

	ctx     context.Context
	pending *xsync.MapOf[ReversalKey, *pendingReversal]
	wg      sync.WaitGroup
}

func NewReversalScheduler(ctx context.Context, logger *slog.Logger) *ReversalScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReversalScheduler{
		Logger:  logger.With("component", "reversals"),
		After:   time.After,
		ctx:     ctx,
		pending: xsync.NewMapOf[ReversalKey, *pendingReversal](),
	}
}

func (rs *ReversalScheduler) Schedule(key ReversalKey, delay time.Duration, action func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(rs.ctx)
	pr := &pendingReversal{cancel: cancel}
	if prev, loaded := rs.pending.LoadAndStore(key, pr); loaded {
		prev.cancel()
		reversalsCancelled.Inc()
	}
	reversalsScheduled.Inc()
	pendingReversals.Set(float64(rs.pending.Size()))
	fire := rs.After(delay)

	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		defer cancel()

		select {
		case <-fire:
		case <-ctx.Done():
			return
		}

		// only the current registration for this key may run. A missing key
		// (cancelled after firing) must be deleted, not stored as nil.
		current := false
		rs.pending.Compute(key, func(old *pendingReversal, loaded bool) (*pendingReversal, bool) {
			current = loaded && old == pr
			return old, current || !loaded
		})
		pendingReversals.Set(float64(rs.pending.Size()))
		if !current || ctx.Err() != nil {
			return
		}

		if err := action(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			reversalErrors.Inc()
			rs.Logger.Error("throttle reversal failed", "key", key.String(), "err", err)
			return
		}
		reversalsFired.Inc()
		rs.Logger.Info("throttle reversed", "key", key.String(), "after", delay)
	}()
}

// Cancel drops the pending reversal for key, if any. Returns true if one was pending.
func (rs *ReversalScheduler) Cancel(key ReversalKey) bool {
	pr, ok := rs.pending.LoadAndDelete(key)
	if !ok {
		return false
	}
	pr.cancel()
	reversalsCancelled.Inc()
	pendingReversals.Set(float64(rs.pending.Size()))
	return true
}

func (rs *ReversalScheduler) Pending(key ReversalKey) bool {
	_, ok := rs.pending.Load(key)
	return ok
}

// Wait blocks until every scheduled reversal has run or been skipped.
func (rs *ReversalScheduler) Wait() {
	rs.wg.Wait()
}
