package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Repository calls by method and outcome.
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	// Latency of repository calls.
	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created from submitted payment proofs",
		},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions that actually changed state",
		},
		[]string{"status", "source"},
	)

	CoinsCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coins_credited_total",
			Help: "Coins credited to users by reason",
		},
		[]string{"reason"},
	)

	ConfirmationsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmations_fired_total",
			Help: "Deferred confirmation firings by result",
		},
		[]string{"result"},
	)

	ConversationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_events_total",
			Help: "Inbound conversation events by state and outcome",
		},
		[]string{"state", "result"},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RepositoryCalls,
			RepositoryDuration,
			OrdersCreated,
			OrderTransitions,
			CoinsCredited,
			ConfirmationsFired,
			ConversationEvents,
		)
	})
}
