// Package metrics exposes prometheus metrics for contract calls and serves them over HTTP.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/username-registry/common"
)

// DefaultBuckets provides histogram buckets in seconds for RPC latencies.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

var (
	registry = prometheus.NewRegistry()

	contractCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "contract_calls_total",
		Help:      "Registry contract calls by method.",
	}, []string{"method"})

	contractCallErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "contract_call_errors_total",
		Help:      "Failed registry contract calls by method.",
	}, []string{"method"})

	contractCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: common.PackageName,
		Name:      "contract_call_duration_seconds",
		Help:      "Registry contract call latency by method.",
		Buckets:   DefaultBuckets,
	}, []string{"method"})

	claimFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "claim_fetches_total",
		Help:      "Claim set fetches by backend and outcome.",
	}, []string{"backend", "outcome"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		contractCalls,
		contractCallErrors,
		contractCallDuration,
		claimFetches,
	)
}

// ObserveContractCall counts a call and returns a func recording its duration.
//
//	defer metrics.ObserveContractCall("roots")()
func ObserveContractCall(method string) func() {
	contractCalls.WithLabelValues(method).Inc()
	start := time.Now()
	return func() {
		contractCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// ContractCallFailed counts a failed call.
func ContractCallFailed(method string) {
	contractCallErrors.WithLabelValues(method).Inc()
}

// ClaimFetch records the outcome of a claim set fetch from a backend.
func ClaimFetch(backend, outcome string) {
	claimFetches.WithLabelValues(backend, outcome).Inc()
}

// Handler returns the HTTP handler serving the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// MetricsServer serves /metrics on a dedicated listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) *MetricsServer {
	mux := chi.NewRouter()
	mux.Handle("/metrics", Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
