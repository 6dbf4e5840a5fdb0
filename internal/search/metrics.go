package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_searches_total",
		Help: "Number of search requests by resolved intent type.",
	}, []string{"intent"})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memoryd_search_duration_seconds",
		Help:    "End-to-end search latency including parsing and hydration.",
		Buckets: prometheus.DefBuckets,
	})
)
