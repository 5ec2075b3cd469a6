package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsFinishedTotal, jobDuration, progressUpdatesTotal, storeErrorsTotal, jobsInFlight, dispatchTotal)
}

var (
	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcode_jobs_finished_total",
			Help: "Total number of transcoding jobs finished, labeled by terminal status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcode_job_duration_seconds",
			Help:    "Wall time of a supervised transcoding run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	progressUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transcode_progress_updates_total",
			Help: "Progress values persisted and broadcast while processing.",
		},
	)

	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcode_store_errors_total",
			Help: "Job store failures seen by the supervisor, labeled by operation.",
		},
		[]string{"op"}, // 'load', 'start', 'progress', 'finalize'
	)

	jobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcode_jobs_in_flight",
			Help: "Supervisors currently running on this instance.",
		},
	)

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcode_dispatch_total",
			Help: "Dispatch attempts, labeled by result.",
		},
		[]string{"result"}, // 'accepted', 'duplicate', 'queue_full', 'locked'
	)
)

func IncJobFinished(status string, elapsed time.Duration) {
	s := norm(status)
	jobsFinishedTotal.WithLabelValues(s).Inc()
	jobDuration.WithLabelValues(s).Observe(elapsed.Seconds())
}

func IncProgressUpdate() { progressUpdatesTotal.Inc() }

func IncStoreError(op string) { storeErrorsTotal.WithLabelValues(norm(op)).Inc() }

func IncInFlight() { jobsInFlight.Inc() }

func DecInFlight() { jobsInFlight.Dec() }

func IncDispatch(result string) { dispatchTotal.WithLabelValues(norm(result)).Inc() }
