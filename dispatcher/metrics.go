package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("modbot/dispatcher")

var updatesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_updates_received",
	Help: "Number of platform updates received",
})

var updatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_updates_handled",
	Help: "Number of platform updates handled, by outcome",
}, []string{"outcome"})

var updateHandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "modbot_update_handle_duration_sec",
	Help:    "Duration of update handling",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
})

var commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_commands_handled",
	Help: "Number of bot commands handled, by scope and command",
}, []string{"scope", "command"})

var ownershipViolations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_ownership_violations",
	Help: "Number of chats left because they are not owned by the bot owner",
})

var lastUpdateID = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modbot_last_update_id",
	Help: "Identifier of the last consumed platform update",
})
