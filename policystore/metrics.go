package policystore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var persistCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_policy_persists_total",
	Help: "Number of policy document writes attempted",
})

var persistFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_policy_persist_failures_total",
	Help: "Number of policy document writes which failed",
})

var groupCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modbot_policy_groups",
	Help: "Number of groups with a stored policy",
})
