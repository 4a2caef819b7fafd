package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the run counters. They live on a private registry so that
// several pipelines, and tests, never collide on registration.
//
// Metrics:
//   - ruleminer_runs_total{status} - Count of runs by final status
//   - ruleminer_evidence_new_total - Evidence records stored
//   - ruleminer_candidate_events_total{event} - Candidate lifecycle events
//   - ruleminer_skips_total{reason} - Skipped units by reason
//   - ruleminer_documents_total{status} - Rule documents by write outcome
//   - ruleminer_unit_errors_total{stage} - Per-unit failures
//   - ruleminer_stage_duration_seconds{stage} - Stage wall time
//   - ruleminer_last_run_timestamp_seconds - Finish time of the last run
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	EvidenceTotal   prometheus.Counter
	CandidateEvents *prometheus.CounterVec
	SkipsTotal      *prometheus.CounterVec
	DocumentsTotal  *prometheus.CounterVec
	UnitErrors      *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	LastRun         prometheus.Gauge
}

// NewMetrics creates the metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleminer_runs_total",
				Help: "Total number of pipeline runs by final status",
			},
			[]string{"status"},
		),
		EvidenceTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ruleminer_evidence_new_total",
				Help: "Total number of new evidence records stored",
			},
		),
		CandidateEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleminer_candidate_events_total",
				Help: "Total number of candidate lifecycle events",
			},
			[]string{"event"}, // "created", "updated", "auto_approved", ...
		),
		SkipsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleminer_skips_total",
				Help: "Total number of skipped units by reason",
			},
			[]string{"reason"},
		),
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleminer_documents_total",
				Help: "Total number of rule documents by write outcome",
			},
			[]string{"status"},
		),
		UnitErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleminer_unit_errors_total",
				Help: "Total number of failures confined to one candidate or document",
			},
			[]string{"stage"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ruleminer_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ruleminer_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// record folds a finished run into the counters.
func (m *Metrics) record(s *Summary, finished time.Time) {
	m.RunsTotal.WithLabelValues(s.Status).Inc()
	m.EvidenceTotal.Add(float64(s.NewEvidence))

	events := map[string]int{
		"created":        s.CandidatesCreated,
		"updated":        s.CandidatesUpdated,
		"auto_approved":  s.AutoApproved,
		"approved":       s.ApprovedByReview,
		"pending_review": s.Pending,
		"needs_evidence": s.NeedsEvidence,
		"rejected":       s.Rejected,
	}
	for event, n := range events {
		if n > 0 {
			m.CandidateEvents.WithLabelValues(event).Add(float64(n))
		}
	}
	for reason, n := range s.Skipped {
		m.SkipsTotal.WithLabelValues(reason).Add(float64(n))
	}
	if s.DocumentsWritten > 0 {
		m.DocumentsTotal.WithLabelValues("written").Add(float64(s.DocumentsWritten))
	}
	if s.DocumentsUnchanged > 0 {
		m.DocumentsTotal.WithLabelValues("unchanged").Add(float64(s.DocumentsUnchanged))
	}
	for _, e := range s.Errors {
		m.UnitErrors.WithLabelValues(e.Stage).Inc()
	}
	m.LastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
