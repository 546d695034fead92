// Package metrics provides custom Prometheus metrics for the import pipeline
// and the notification scheduler.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics contains all Prometheus metrics related to import pipeline runs.
type ImportMetrics struct {
	ImportsStarted   prometheus.Counter
	ImportsCompleted prometheus.Counter
	ImportsFailed    prometheus.Counter
	ImportDuration   prometheus.Histogram

	RowsImported prometheus.Counter
	RowsSkipped  *prometheus.CounterVec // by skip reason

	IdentitiesNew       prometheus.Counter
	IdentitiesMigrated  prometheus.Counter
	IdentitiesAmbiguous prometheus.Counter

	UnseenMarkersCreated prometheus.Counter

	registry *prometheus.Registry
}

// NewImportMetrics registers and returns the import pipeline metrics.
func NewImportMetrics(registry *prometheus.Registry) (*ImportMetrics, error) {
	m := &ImportMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register import metrics: %w", err)
	}
	return m, nil
}

func (m *ImportMetrics) initMetrics() {
	m.ImportsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_runs_started_total",
		Help: "Total number of import pipeline runs started",
	})
	m.ImportsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_runs_completed_total",
		Help: "Total number of import pipeline runs completed successfully",
	})
	m.ImportsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_runs_failed_total",
		Help: "Total number of import pipeline runs that aborted",
	})
	m.ImportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_run_duration_seconds",
		Help:    "Wall clock duration of import pipeline runs",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	})
	m.RowsImported = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_imported_total",
		Help: "Total number of snapshot rows imported as observations",
	})
	m.RowsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_skipped_total",
		Help: "Total number of snapshot rows skipped, by reason",
	}, []string{"reason"})
	m.IdentitiesNew = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_identities_new_total",
		Help: "Total number of observations seen for the first time",
	})
	m.IdentitiesMigrated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_identities_migrated_total",
		Help: "Total number of observations matched to a predecessor",
	})
	m.IdentitiesAmbiguous = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_identities_ambiguous_total",
		Help: "Total number of observations with multiple predecessor candidates",
	})
	m.UnseenMarkersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_unseen_markers_created_total",
		Help: "Total number of notification eligibility markers created",
	})
}

// Collect implements the prometheus.Collector interface.
func (m *ImportMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ImportsStarted.Collect(ch)
	m.ImportsCompleted.Collect(ch)
	m.ImportsFailed.Collect(ch)
	m.ImportDuration.Collect(ch)
	m.RowsImported.Collect(ch)
	m.RowsSkipped.Collect(ch)
	m.IdentitiesNew.Collect(ch)
	m.IdentitiesMigrated.Collect(ch)
	m.IdentitiesAmbiguous.Collect(ch)
	m.UnseenMarkersCreated.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *ImportMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ImportsStarted.Describe(ch)
	m.ImportsCompleted.Describe(ch)
	m.ImportsFailed.Describe(ch)
	m.ImportDuration.Describe(ch)
	m.RowsImported.Describe(ch)
	m.RowsSkipped.Describe(ch)
	m.IdentitiesNew.Describe(ch)
	m.IdentitiesMigrated.Describe(ch)
	m.IdentitiesAmbiguous.Describe(ch)
	m.UnseenMarkersCreated.Describe(ch)
}

// RecordRowSkipped increments the skip counter for a reason. Safe on a nil
// receiver so callers without metrics wiring can pass nil.
func (m *ImportMetrics) RecordRowSkipped(reason string) {
	if m == nil {
		return
	}
	m.RowsSkipped.WithLabelValues(reason).Inc()
}

// RecordRowImported increments the imported rows counter.
func (m *ImportMetrics) RecordRowImported() {
	if m == nil {
		return
	}
	m.RowsImported.Inc()
}

// RecordOutcome increments the reconciliation outcome counters.
func (m *ImportMetrics) RecordOutcome(newIdentity, migrated, ambiguous bool) {
	if m == nil {
		return
	}
	switch {
	case newIdentity:
		m.IdentitiesNew.Inc()
	case migrated:
		m.IdentitiesMigrated.Inc()
	case ambiguous:
		m.IdentitiesAmbiguous.Inc()
	}
}

// RecordRunStarted increments the started runs counter.
func (m *ImportMetrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.ImportsStarted.Inc()
}

// RecordRunFinished records the run outcome and its duration.
func (m *ImportMetrics) RecordRunFinished(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	if success {
		m.ImportsCompleted.Inc()
	} else {
		m.ImportsFailed.Inc()
	}
	m.ImportDuration.Observe(duration.Seconds())
}

// RecordUnseenMarker increments the eligibility marker counter.
func (m *ImportMetrics) RecordUnseenMarker() {
	if m == nil {
		return
	}
	m.UnseenMarkersCreated.Inc()
}
