// Package metrics exposes Prometheus collectors for the faucet and the
// HTTP server that serves /metrics and /healthz.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimit       *prometheus.CounterVec
	commands        *prometheus.CounterVec
	ledgerCalls     *prometheus.CounterVec
	ledgerDuration  *prometheus.HistogramVec
}

// New registers the faucet collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		rateLimit: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "faucet_rate_limit_total", Help: "Rate limit decisions"},
			[]string{"result"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "faucet_commands_total", Help: "Chat commands handled"},
			[]string{"command", "outcome"},
		),
		ledgerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "faucet_ledger_calls_total", Help: "Node calls by operation and result"},
			[]string{"op", "result"},
		),
		ledgerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faucet_ledger_call_duration_seconds",
				Help:    "Node call duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.rateLimit,
		m.commands,
		m.ledgerCalls,
		m.ledgerDuration,
	)
	return m
}

// RateLimit counts one limiter decision.
func (m *Metrics) RateLimit(allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.rateLimit.WithLabelValues(result).Inc()
}

// Command counts one handled chat command.
func (m *Metrics) Command(command, outcome string) {
	m.commands.WithLabelValues(command, outcome).Inc()
}

// ObserveCall records a node call. It satisfies ledger.Observer.
func (m *Metrics) ObserveCall(op string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerCalls.WithLabelValues(op, result).Inc()
	m.ledgerDuration.WithLabelValues(op).Observe(d.Seconds())
}
