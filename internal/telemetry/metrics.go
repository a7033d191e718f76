// Package telemetry exposes Prometheus metrics for the job pipeline.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsCreated     = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_created_total", Help: "Jobs accepted via the submit endpoint"})
	JobsCompleted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_completed_total", Help: "Jobs that reached the completed state"})
	JobsFailed      = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_failed_total", Help: "Jobs that reached the failed state"})
	JobsEvicted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_evicted_total", Help: "Jobs removed by TTL eviction"})
	JobsInFlight    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "jobs_inflight", Help: "Jobs currently being processed"})
	RegistrySize    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "registry_jobs", Help: "Jobs currently held in the registry"})
	UpstreamRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "upstream_retries_total", Help: "Upstream request attempts that were retried"})
)

// Handler exposes the /metrics HTTP handler with a singleton registration.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsCreated,
			JobsCompleted,
			JobsFailed,
			JobsEvicted,
			JobsInFlight,
			RegistrySize,
			UpstreamRetries,
		)
	})
	return promhttp.Handler()
}
