package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Remote store
	StoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_requests_total",
			Help: "Total number of remote store calls",
		},
		[]string{"backend", "op", "status"},
	)
	StoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "store_request_duration_seconds",
			Help: "Duration of remote store calls in seconds",
		},
		[]string{"backend", "op"},
	)

	// Gateway
	SignalsPushedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_pushed_total",
			Help: "Signals pushed to the store by outcome",
		},
		[]string{"status"},
	)
	SignalsRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signals_removed_total",
			Help: "Signals removed by age-based cleanup",
		},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_notifications_total",
			Help: "Signal notifications sent by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)

	prometheus.MustRegister(StoreRequestsTotal)
	prometheus.MustRegister(StoreRequestDuration)

	prometheus.MustRegister(SignalsPushedTotal)
	prometheus.MustRegister(SignalsRemovedTotal)
	prometheus.MustRegister(NotificationsTotal)
}

// ObserveStore records one remote store call.
func ObserveStore(backend, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreRequestsTotal.WithLabelValues(backend, op, status).Inc()
	StoreRequestDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
