package metrics

import (
	"context"
	"time"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Label keys shared by every collector.
const (
	LabelUnit    = "unit"
	LabelOutcome = "outcome"
	LabelKind    = "kind"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder owns a private registry so a run's metrics can be pushed as one group.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	units    *prometheus.CounterVec
	attempts *prometheus.CounterVec
	skips    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "units_total",
			Help:      "Units of work completed, by unit type and outcome.",
		}, []string{LabelUnit, LabelOutcome}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "unit_attempts_total",
			Help:      "Attempts made per unit type, retries included.",
		}, []string{LabelUnit}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "skipped_units_total",
			Help:      "Units dropped from the result, by unit type and error kind.",
		}, []string{LabelUnit, LabelKind}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Name:      "unit_duration_seconds",
			Help:      "Wall time per unit including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{LabelUnit}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roster",
			Name:      "enriched_records",
			Help:      "Enriched records produced by the last run.",
		}),
	}
	r.registry.MustRegister(r.units, r.attempts, r.skips, r.duration, r.records)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordUnit tracks one finished unit of work.
func (r *Recorder) RecordUnit(unit string, attempts int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.units.WithLabelValues(unit, outcome).Inc()
	r.attempts.WithLabelValues(unit).Add(float64(attempts))
	r.duration.WithLabelValues(unit).Observe(duration.Seconds())
}

func (r *Recorder) RecordSkip(unit string, kind errors.Kind) {
	if r == nil {
		return
	}
	r.skips.WithLabelValues(unit, kind.String()).Inc()
}

func (r *Recorder) SetRecords(n int) {
	if r == nil {
		return
	}
	r.records.Set(float64(n))
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(r.registry).PushContext(ctx)
	if err != nil {
		return errors.NewServiceError("metrics push failed", "pushgateway", "push", 0, errors.KindTransient, err)
	}
	return nil
}
