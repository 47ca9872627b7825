package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	transcriber = "transcriber"

	// Job metrics
	jobsProcessedTotal = "jobs_processed_total"
	jobDurationSeconds = "job_duration_seconds"
	jobsEnqueuedTotal  = "jobs_enqueued_total"

	// Labels
	engineLabel = "engine"
	statusLabel = "status"
)

var jobsProcessedLabels = []string{
	engineLabel,
	statusLabel,
}

var jobDurationLabels = []string{
	engineLabel,
}

var jobsEnqueuedLabels = []string{
	engineLabel,
}

/**
* Metrics definition
**/
var jobsProcessedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: transcriber,
		Name:      jobsProcessedTotal,
		Help:      "number of transcription jobs processed by engine and final status",
	},
	jobsProcessedLabels,
)

var jobDurationSecondsMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: transcriber,
		Name:      jobDurationSeconds,
		Help:      "end to end transcription job duration",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	},
	jobDurationLabels,
)

var jobsEnqueuedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: transcriber,
		Name:      jobsEnqueuedTotal,
		Help:      "number of transcription jobs accepted for processing",
	},
	jobsEnqueuedLabels,
)

func IncreaseJobsProcessedMetric(engine string, status string) {
	labels := prometheus.Labels{
		engineLabel: engine,
		statusLabel: status,
	}
	jobsProcessedTotalMetric.With(labels).Inc()
}

func ObserveJobDurationMetric(engine string, d time.Duration) {
	labels := prometheus.Labels{
		engineLabel: engine,
	}
	jobDurationSecondsMetric.With(labels).Observe(d.Seconds())
}

func IncreaseJobsEnqueuedMetric(engine string) {
	labels := prometheus.Labels{
		engineLabel: engine,
	}
	jobsEnqueuedTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsProcessedTotalMetric)
	prometheus.MustRegister(jobDurationSecondsMetric)
	prometheus.MustRegister(jobsEnqueuedTotalMetric)
}
