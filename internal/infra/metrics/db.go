package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbAcquireWaitSeconds) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transcode_db_pool_connections",
			Help: "Connections of the job store pool by state.",
		},
		[]string{"state"}, // total, idle, in_use, max
	)

	dbAcquireWaitSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcode_db_pool_acquire_wait_seconds",
			Help: "Cumulative time supervisors and handlers spent waiting for a job store connection.",
		},
	)
)

// PoolStats is the subset of pool statistics the job store reports.
type PoolStats struct {
	Total, Idle, InUse, Max int32
	AcquireWaitSeconds      float64
}

func SetDBPoolStats(st PoolStats) {
	dbPoolConns.WithLabelValues("total").Set(float64(st.Total))
	dbPoolConns.WithLabelValues("idle").Set(float64(st.Idle))
	dbPoolConns.WithLabelValues("in_use").Set(float64(st.InUse))
	dbPoolConns.WithLabelValues("max").Set(float64(st.Max))
	dbAcquireWaitSeconds.Set(st.AcquireWaitSeconds)
}
