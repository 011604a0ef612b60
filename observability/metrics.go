// Package observability exposes Prometheus metrics for the payroll engine.
//
// Metrics are registered on a caller-supplied Registerer so tests can use
// an isolated registry; the server passes prometheus.DefaultRegisterer and
// serves it on /metrics.
//
//   - payroll_tax_table_cache_access_total{outcome}
//   - payroll_tax_table_ingest_total{result}
//   - payroll_tax_table_ingest_duration_seconds
//   - payroll_tax_table_brackets / payroll_tax_table_skipped_rows
//   - payroll_calculations_total{operation,result}
//   - payroll_http_request_duration_seconds{route,status}
package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/withholding"
)

const namespace = "payroll"

// Metrics implements withholding.CacheObserver.
type Metrics struct {
	cacheAccess    *prometheus.CounterVec
	ingests        *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	brackets       prometheus.Gauge
	skippedRows    prometheus.Gauge
	calculations   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

var _ withholding.CacheObserver = (*Metrics)(nil)

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cacheAccess: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tax_table",
			Name:      "cache_access_total",
			Help:      "Withholding table cache reads by outcome (hit, miss, expired, forced).",
		}, []string{"outcome"}),
		ingests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tax_table",
			Name:      "ingest_total",
			Help:      "Withholding table parses by result.",
		}, []string{"result"}),
		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tax_table",
			Name:      "ingest_duration_seconds",
			Help:      "Time to fetch and parse the withholding table.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		brackets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tax_table",
			Name:      "brackets",
			Help:      "Brackets in the last successfully parsed table.",
		}),
		skippedRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tax_table",
			Name:      "skipped_rows",
			Help:      "Rows skipped by the last parse.",
		}),
		calculations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Engine operations by result (ok, ingest_error, no_bracket, not_found, client_error, error).",
		}, []string{"operation", "result"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// =============================================================================
// CACHE OBSERVER
// =============================================================================

func (m *Metrics) CacheAccess(outcome withholding.CacheOutcome) {
	m.cacheAccess.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) IngestFinished(report *withholding.IngestReport, elapsed time.Duration, err error) {
	m.ingestDuration.Observe(elapsed.Seconds())
	if report != nil {
		m.skippedRows.Set(float64(len(report.Skipped)))
	}
	if err != nil {
		m.ingests.WithLabelValues("error").Inc()
		return
	}
	m.ingests.WithLabelValues("ok").Inc()
	if report != nil {
		m.brackets.Set(float64(report.Primary + report.Secondary + report.Explicit))
	}
}

// =============================================================================
// CALCULATIONS & HTTP
// =============================================================================

// ObserveCalculation counts one engine operation, classifying err.
func (m *Metrics) ObserveCalculation(operation string, err error) {
	m.calculations.WithLabelValues(operation, Classify(err)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Classify maps an engine error to a metric label.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, generic.ErrIngest):
		return "ingest_error"
	case errors.Is(err, generic.ErrNoMatchingBracket):
		return "no_bracket"
	case generic.IsNotFound(err):
		return "not_found"
	case generic.IsClientError(err):
		return "client_error"
	default:
		return "error"
	}
}
