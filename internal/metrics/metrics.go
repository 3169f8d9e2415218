// Package metrics holds the Prometheus collectors shared by the provider
// adapters, the freshness ledger and the content engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "discoverdb"

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Upstream provider requests by provider, capability and outcome",
	}, []string{"provider", "capability", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Upstream provider request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "capability"})

	LedgerLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_log_lookups_total",
		Help:      "Freshness checks by purpose and result",
	}, []string{"purpose", "result"})

	ContentWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "content_rows_written_total",
		Help:      "Content rows written by type and operation",
	}, []string{"type", "operation"})
)

// Outcome values for ProviderRequests
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ObserveProvider records one upstream call that started at start
func ObserveProvider(provider, capability string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	ProviderRequests.WithLabelValues(provider, capability, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, capability).Observe(time.Since(start).Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
