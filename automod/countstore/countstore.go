// Per-group moderation counters: how many spam messages were removed and how many senders were banned, muted or throttled, per day and in total.
package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
)

// Counter names.
const (
	CounterSpam      = "spam"
	CounterLinks     = "links"
	CounterBanned    = "banned"
	CounterMuted     = "muted"
	CounterThrottled = "throttled"
	CounterJoins     = "joins"
	// distinct senders which triggered any enforcement
	CounterOffenders = "offenders"
)

type CountStore interface {
	GetCount(ctx context.Context, groupID int64, counter, period string) (int, error)
	Increment(ctx context.Context, groupID int64, counter string) error
	GetCountDistinct(ctx context.Context, groupID int64, counter, period string) (int, error)
	IncrementDistinct(ctx context.Context, groupID int64, counter string, senderID int64) error
}

func periodBucket(groupID int64, counter, period string, now time.Time) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%d/%s", groupID, counter)
	case PeriodDay:
		return fmt.Sprintf("%d/%s/%s", groupID, counter, dayOf(now))
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%d/%s", groupID, counter)
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
