package automod

import (
	"context"
	"fmt"
	"strings"

	"github.com/kekal/ModerationBot/automod/countstore"
)

var statsRows = []struct {
	label   string
	counter string
}{
	{"Spam messages removed", countstore.CounterSpam},
	{"Non-member links removed", countstore.CounterLinks},
	{"Users banned", countstore.CounterBanned},
	{"Users muted", countstore.CounterMuted},
	{"Throttle restrictions", countstore.CounterThrottled},
	{"Join/leave notices removed", countstore.CounterJoins},
}

// GroupStats renders the moderation counters of a group as a plain-text report.
func (eng *Engine) GroupStats(ctx context.Context, chatID int64) (string, error) {
	var sb strings.Builder
	sb.WriteString("Moderation stats (today / total):\n")
	for _, row := range statsRows {
		day, err := eng.Counters.GetCount(ctx, chatID, row.counter, countstore.PeriodDay)
		if err != nil {
			return "", err
		}
		total, err := eng.Counters.GetCount(ctx, chatID, row.counter, countstore.PeriodTotal)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%s: %d / %d\n", row.label, day, total)
	}
	day, err := eng.Counters.GetCountDistinct(ctx, chatID, countstore.CounterOffenders, countstore.PeriodDay)
	if err != nil {
		return "", err
	}
	total, err := eng.Counters.GetCountDistinct(ctx, chatID, countstore.CounterOffenders, countstore.PeriodTotal)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "Distinct offenders: %d / %d", day, total)
	return sb.String(), nil
}
