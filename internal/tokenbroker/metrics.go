package tokenbroker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendagate_token_cache_hits_total",
		Help: "ERP tokens served from cache without a network call.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendagate_token_cache_misses_total",
		Help: "Token requests that found no valid cache entry.",
	})
	authentications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendagate_erp_authentications_total",
		Help: "ERP login attempts by protocol and outcome.",
	}, []string{"protocol", "outcome"})
)
