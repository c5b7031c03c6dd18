package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_chat_cache_hits_total",
	Help: "Number of chat metadata lookups served from cache",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_chat_cache_misses_total",
	Help: "Number of chat metadata lookups which went to the platform",
})
