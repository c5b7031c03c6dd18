package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "modbot_automod_message_duration_sec",
	Help: "Total duration of group message processing",
})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_automod_messages_processed",
	Help: "Number of group messages processed, by outcome",
}, []string{"outcome"})

var messageErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_automod_message_errors",
	Help: "Number of group messages which failed processing",
})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_automod_actions",
	Help: "Number of moderation actions taken, by type",
}, []string{"action"})

var reversalsScheduled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_automod_reversals_scheduled",
	Help: "Number of throttle reversals scheduled",
})

var reversalsFired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_automod_reversals_fired",
	Help: "Number of throttle reversals executed",
})

var reversalsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_automod_reversals_cancelled",
	Help: "Number of throttle reversals cancelled or replaced before firing",
})

var reversalErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_automod_reversal_errors",
	Help: "Number of throttle reversals which failed",
})

var pendingReversals = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modbot_automod_reversals_pending",
	Help: "Number of throttle reversals waiting to fire",
})
