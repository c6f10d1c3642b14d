package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"segment-selector/domain/selection"
)

// Submission outcomes
const (
	OutcomeSubmitted     = "submitted"
	OutcomeTooShort      = "too_short"
	OutcomeTooLong       = "too_long"
	OutcomeConsumerError = "consumer_error"
	OutcomeRejected      = "rejected"
)

// Gauges
var (
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "segment_selector_open_sessions",
		Help: "Number of selection sessions currently held in memory",
	})
)

// Counters
var (
	SessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segment_selector_sessions_opened_total",
		Help: "Total selection sessions opened",
	})
	BoundaryUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_selector_boundary_updates_total",
		Help: "Total boundary updates by boundary",
	}, []string{"boundary"})
	SelfHealingPullsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_selector_self_healing_pulls_total",
		Help: "Boundary updates that pulled the opposite boundary to hold the span cap, by moved boundary",
	}, []string{"boundary"})
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_selector_submissions_total",
		Help: "Proceed attempts by outcome",
	}, []string{"outcome"})
)

// Histograms
var (
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segment_selector_probe_duration_seconds",
		Help:    "Time spent reading media metadata",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	ClipDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segment_selector_clip_duration_seconds",
		Help:    "Time spent cutting a clip with ffmpeg",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

// RecordBoundaryUpdate counts an update of moved and, when the opposite
// boundary changed too, a self-healing pull
func RecordBoundaryUpdate(moved selection.Boundary, before, after selection.Selection) {
	BoundaryUpdatesTotal.WithLabelValues(string(moved)).Inc()

	pulled := false
	switch moved {
	case selection.BoundaryStart:
		pulled = before.End != after.End
	case selection.BoundaryEnd:
		pulled = before.Start != after.Start
	}
	if pulled {
		SelfHealingPullsTotal.WithLabelValues(string(moved)).Inc()
	}
}

// SubmissionOutcome maps a Proceed error onto an outcome label
func SubmissionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSubmitted
	case errors.Is(err, selection.ErrSelectionTooShort):
		return OutcomeTooShort
	case errors.Is(err, selection.ErrSelectionTooLong):
		return OutcomeTooLong
	case errors.Is(err, selection.ErrMediaNotReady), errors.Is(err, selection.ErrSessionClosed):
		return OutcomeRejected
	default:
		return OutcomeConsumerError
	}
}

// RecordSubmission counts a Proceed attempt
func RecordSubmission(err error) {
	SubmissionsTotal.WithLabelValues(SubmissionOutcome(err)).Inc()
}
