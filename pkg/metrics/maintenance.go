package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintenanceMetrics tracks scheduled maintenance jobs.
type MaintenanceMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	rows     *prometheus.CounterVec
}

func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "maintenance_job_duration_seconds",
		Help:      "Wall time of a maintenance job run.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_job_runs_total",
		Help:      "Maintenance job runs by outcome.",
	}, []string{"job", "outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_rows_deleted_total",
		Help:      "Rows removed by maintenance jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, rows)
	return &MaintenanceMetrics{duration: duration, runs: runs, rows: rows}
}

func (m *MaintenanceMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
}

func (m *MaintenanceMetrics) IncSuccess(job string) {
	m.incRun(job, "success")
}

func (m *MaintenanceMetrics) IncFailure(job string) {
	m.incRun(job, "failure")
}

func (m *MaintenanceMetrics) AddRowsDeleted(job string, n int64) {
	if m == nil || m.rows == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func (m *MaintenanceMetrics) incRun(job, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}
