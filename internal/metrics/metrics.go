package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerOperations counts ledger mutations by operation and outcome.
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saldo_ledger_operations_total",
			Help: "Total number of ledger operations processed",
		},
		[]string{"operation", "outcome"},
	)

	// LedgerOperationDuration observes how long each ledger operation takes.
	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saldo_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2},
		},
		[]string{"operation"},
	)

	// GatewayNotifications counts payment notifications by resulting status.
	GatewayNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saldo_gateway_notifications_total",
			Help: "Total number of payment gateway notifications received",
		},
		[]string{"status"},
	)
)

// HTTPRequests counts handled requests by method, matched route and status code.
var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saldo_http_requests_total",
		Help: "Total number of HTTP requests handled",
	},
	[]string{"method", "route", "status"},
)
