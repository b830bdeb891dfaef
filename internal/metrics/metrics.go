package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staytoken",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staytoken",
			Name:      "protocol_operations_total",
			Help:      "Protocol operations by kind.",
		},
		[]string{"op"},
	)

	payoutAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staytoken",
			Name:      "payout_amount_total",
			Help:      "Settlement currency paid out by the treasury.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, operations, payoutAmount)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncOperation increments the counter for a protocol operation.
func IncOperation(op string) {
	operations.WithLabelValues(op).Inc()
}

// AddPayout accumulates paid-out settlement currency.
func AddPayout(amount int64) {
	if amount > 0 {
		payoutAmount.Add(float64(amount))
	}
}
