package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsMaterialized *prometheus.CounterVec
	consolidations   *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	conflictsTotal   *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	watermarkIndex   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsMaterialized: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_bars_materialized_total",
				Help: "Total number of interval bars written",
			},
			[]string{"symbol", "interval"},
		),
		consolidations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_consolidated_rows_total",
				Help: "Raw rows merged into canonical series",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		conflictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_watermark_conflicts_total",
				Help: "Watermark compare-and-advance losses",
			},
			[]string{"symbol", "interval"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barforge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		watermarkIndex: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "barforge_watermark_period_index",
				Help: "Last committed period index per symbol and interval",
			},
			[]string{"symbol", "interval"},
		),
	}
}

// RecordBarsMaterialized counts interval bars written for a symbol.
func (r *Recorder) RecordBarsMaterialized(symbol string, interval int, count int) {
	r.barsMaterialized.WithLabelValues(symbol, itoa(interval)).Add(float64(count))
}

// RecordConsolidation counts raw rows merged for a symbol.
func (r *Recorder) RecordConsolidation(symbol string, merged int) {
	r.consolidations.WithLabelValues(symbol).Add(float64(merged))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordConflict records a lost watermark compare-and-advance.
func (r *Recorder) RecordConflict(symbol string, interval int) {
	r.conflictsTotal.WithLabelValues(symbol, itoa(interval)).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordWatermarkIndex publishes the last committed period index.
func (r *Recorder) RecordWatermarkIndex(symbol string, interval int, index int64) {
	r.watermarkIndex.WithLabelValues(symbol, itoa(interval)).Set(float64(index))
}

func itoa(n int) string { return strconv.Itoa(n) }
