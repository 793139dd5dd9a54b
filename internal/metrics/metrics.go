// Package metrics exposes the Prometheus series this service publishes at
// GET /metrics: HTTP request counters plus job lifecycle counters and
// per-stage durations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus series this service registers.
type Metrics struct {
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec
	HTTPResponseSize    prometheus.HistogramVec

	JobsCreatedTotal   prometheus.CounterVec
	JobsCompletedTotal prometheus.CounterVec
	JobsFailedTotal    prometheus.CounterVec
	JobStageDuration   prometheus.HistogramVec
	JobsActive         prometheus.GaugeVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers every series exactly once.
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),

			JobsCreatedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "jobs_created_total",
					Help: "Total number of generation jobs created",
				},
				[]string{"output_format"},
			),
			JobsCompletedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "jobs_completed_total",
					Help: "Total number of generation jobs completed",
				},
				[]string{"output_format"},
			),
			JobsFailedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "jobs_failed_total",
					Help: "Total number of generation jobs that failed, by stage",
				},
				[]string{"stage"},
			),
			JobStageDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "job_stage_duration_seconds",
					Help:    "Wall-clock time spent in each pipeline stage",
					Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
				},
				[]string{"stage"},
			),
			JobsActive: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "jobs_active",
					Help: "Number of jobs currently queued or running",
				},
				[]string{},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance, initializing it on first use.
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
