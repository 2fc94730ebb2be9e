// Package metrics exposes Prometheus metrics for pipeline runs. A batch
// run has no scrape endpoint, so the registry is written to a
// node_exporter textfile at the end of the run.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/pipeline"
)

// Metrics holds all Prometheus metrics for a run
type Metrics struct {
	registry *prometheus.Registry

	FilesIngested     prometheus.Counter
	PaymentsIngested  prometheus.Counter
	PaymentsUnmatched prometheus.Counter
	VendorsCreated    prometheus.Counter
	Classifications   *prometheus.CounterVec
	Corrections       *prometheus.CounterVec
	Vendors           *prometheus.GaugeVec
	Composition       *prometheus.GaugeVec
	MemoHitRatio      prometheus.Gauge
	RunDuration       prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FilesIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_files_ingested_total",
			Help: "Payment schedule files read",
		}),
		PaymentsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_payments_ingested_total",
			Help: "Payment records fed to the pipeline",
		}),
		PaymentsUnmatched: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_payments_unmatched_total",
			Help: "Payment records whose vendor name normalized to nothing",
		}),
		VendorsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_vendors_created_total",
			Help: "Vendor identities created",
		}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_classifications_total",
			Help: "Vendors run through the classifier, by proposed vendor type",
		}, []string{"vendor_type"}),
		Corrections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_corrections_total",
			Help: "Corrections applied, by kind",
		}, []string{"kind"}),
		Vendors: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_vendors",
			Help: "Vendor identities in the registry, by vendor type",
		}, []string{"vendor_type"}),
		Composition: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_composition_dollars",
			Help: "Payments per fiscal year and sector",
		}, []string{"year", "sector"}),
		MemoHitRatio: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_classify_memo_hit_ratio",
			Help: "Share of classifier lookups served from the memo",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveIngest records the files read by the ingestion step.
func (m *Metrics) ObserveIngest(files int) {
	m.FilesIngested.Add(float64(files))
}

// ObserveRun records the outcome of a pipeline run.
func (m *Metrics) ObserveRun(res *pipeline.Result, finished time.Time) {
	s := res.Stats
	m.PaymentsIngested.Add(float64(s.Payments))
	m.PaymentsUnmatched.Add(float64(s.Unmatched))
	m.VendorsCreated.Add(float64(s.VendorsCreated))
	for kind, n := range s.CorrectionsByKind {
		m.Corrections.WithLabelValues(kind).Add(float64(n))
	}
	for t, n := range s.VendorsByType {
		m.Vendors.WithLabelValues(string(t)).Set(float64(n))
	}
	for t, n := range s.ClassifiedByType {
		m.Classifications.WithLabelValues(string(t)).Add(float64(n))
	}

	if res.Aggregate != nil {
		for _, row := range res.Aggregate.Composition {
			year := strconv.Itoa(row.Year)
			m.Composition.WithLabelValues(year, string(core.Public)).Set(row.Public.Dollars())
			m.Composition.WithLabelValues(year, string(core.NonProfit)).Set(row.NonProfit.Dollars())
			m.Composition.WithLabelValues(year, string(core.ForProfit)).Set(row.ForProfit.Dollars())
			m.Composition.WithLabelValues(year, string(core.Unknown)).Set(row.Unknown.Dollars())
		}
	}

	m.RunDuration.Set(finished.Sub(res.StartedAt).Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// ObserveMemo records the classifier memo hit ratio.
func (m *Metrics) ObserveMemo(s cache.Stats) {
	m.MemoHitRatio.Set(s.Ratio())
}

// WriteToTextfile writes every metric to path in the text exposition
// format, replacing the file atomically.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
