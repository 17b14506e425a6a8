// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VolumesTotal is the number of volumes discovered, by enabled/disabled status.
	VolumesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bitslides_volumes_total",
			Help: "Total number of discovered volumes by status",
		},
		[]string{"status"},
	)

	// SyncJobsTotal is the number of planned sync jobs, by route kind.
	SyncJobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bitslides_sync_jobs_total",
			Help: "Total number of planned sync jobs by route kind (direct, indirect)",
		},
		[]string{"route"},
	)

	// SyncRunsTotal counts completed sync passes per job, by outcome.
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitslides_sync_runs_total",
			Help: "Total number of sync passes per job by outcome",
		},
		[]string{"src", "via", "dst", "outcome"},
	)

	// SyncDuration observes the wall-clock time of a single sync pass.
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitslides_sync_duration_seconds",
			Help:    "Duration of a single directory sync pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"src", "via", "dst"},
	)

	// FilesMovedTotal counts files successfully moved between slides.
	FilesMovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitslides_files_moved_total",
			Help: "Total number of files moved between slides",
		},
		[]string{"src", "via", "dst"},
	)

	// MoveRetriesTotal counts checksum-mismatch retries in the file mover.
	MoveRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitslides_move_retries_total",
			Help: "Total number of file move retries caused by checksum mismatch",
		},
		[]string{"algorithm"},
	)

	// WakeupsTotal counts watcher-triggered wakeups delivered to job loops.
	WakeupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitslides_watcher_wakeups_total",
			Help: "Total number of filesystem-event wakeups delivered to sync jobs",
		},
		[]string{"src", "via", "dst"},
	)

	// DirsReclaimedTotal counts empty directories removed during reclamation.
	DirsReclaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitslides_dirs_reclaimed_total",
			Help: "Total number of empty source directories reclaimed after a sync",
		},
		[]string{"src", "via", "dst"},
	)
)

func init() {
	prometheus.MustRegister(
		VolumesTotal,
		SyncJobsTotal,
		SyncRunsTotal,
		SyncDuration,
		FilesMovedTotal,
		MoveRetriesTotal,
		WakeupsTotal,
		DirsReclaimedTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
