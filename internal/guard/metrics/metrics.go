package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all guardhome metrics.
type Registry struct {
	// Upstream filtering API client
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Rule-mutation guard
	UnblockAttempts *prometheus.CounterVec
	Rollbacks       *prometheus.CounterVec
	BackupsWritten  prometheus.Counter

	// Control API
	APIRequests *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardhome",
		Name:      "upstream_requests_total",
		Help:      "Requests made to the upstream filtering service, by operation and outcome.",
	}, []string{"op", "outcome"})

	r.UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guardhome",
		Name:      "upstream_request_seconds",
		Help:      "Latency of upstream filtering service calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	r.UnblockAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardhome",
		Name:      "unblock_attempts_total",
		Help:      "Unblock invocations, by outcome.",
	}, []string{"outcome"})

	r.Rollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardhome",
		Name:      "rollbacks_total",
		Help:      "Rollback attempts after a failed rule mutation, by outcome.",
	}, []string{"outcome"})

	r.BackupsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardhome",
		Name:      "backups_written_total",
		Help:      "Pre-mutation rule backups persisted to disk.",
	})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardhome",
		Name:      "api_requests_total",
		Help:      "Control API requests, by route and status code.",
	}, []string{"route", "code"})

	return r
}

// ObserveUpstream records one upstream call with its duration and outcome.
func (r *Registry) ObserveUpstream(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.UpstreamRequests.WithLabelValues(op, outcome).Inc()
	r.UpstreamLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}
