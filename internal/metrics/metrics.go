// Package metrics registers the Prometheus collectors of the chat front end.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AgentQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthguard_agent_queries_total",
			Help: "Total number of agent queries by outcome",
		},
		[]string{"outcome"},
	)

	AgentQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthguard_agent_query_duration_seconds",
			Help:    "Duration of agent queries in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ContractViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthguard_contract_violations_total",
			Help: "Agent responses carrying values outside the documented contract",
		},
		[]string{"field"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthguard_chat_sessions_active",
			Help: "Number of registered chat sessions",
		},
	)

	WebSocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthguard_ws_dropped_total",
			Help: "Websocket clients dropped because their send queue was full",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
