// Package metrics exports import counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/recimport/internal/core"
)

const namespace = "recimport"

// Recorder implements core.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	rowsAccepted  prometheus.Counter
	rowsRejected  *prometheus.CounterVec
	versions      *prometheus.CounterVec
	files         *prometheus.CounterVec
	schemaFetches *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
}

// New creates a recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_accepted_total",
			Help:      "Rows that produced a record version.",
		}),
		rowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Row and file errors by kind.",
		}, []string{"kind"}),
		versions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_created_total",
			Help:      "Record versions appended, by whether a prior version existed.",
		}, []string{"type"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Processed source files by disposition.",
		}, []string{"disposition"}),
		schemaFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_fetches_total",
			Help:      "Descriptive schema fetches by result.",
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completed batches by result.",
		}, []string{"result"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one batch run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.rowsAccepted,
		r.rowsRejected,
		r.versions,
		r.files,
		r.schemaFetches,
		r.batches,
		r.batchDuration,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// TrackLimiter exports the limiter's occupancy as gauges.
func (r *Recorder) TrackLimiter(l *core.ImportLimiter) {
	r.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imports_active",
			Help:      "Direct imports currently running.",
		}, func() float64 { return float64(l.ActiveCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imports_max",
			Help:      "Maximum concurrent direct imports.",
		}, func() float64 { return float64(l.MaxConcurrent()) }),
	)
}

func (r *Recorder) RowAccepted(merged bool) {
	r.rowsAccepted.Inc()
	if merged {
		r.versions.WithLabelValues("merged").Inc()
	} else {
		r.versions.WithLabelValues("new").Inc()
	}
}

func (r *Recorder) RowRejected(kind core.ErrorKind) {
	r.rowsRejected.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) FileProcessed(d core.Disposition) {
	r.files.WithLabelValues(string(d)).Inc()
}

func (r *Recorder) SchemaFetched(err error) {
	r.schemaFetches.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) BatchCompleted(d time.Duration, err error) {
	r.batches.WithLabelValues(result(err)).Inc()
	r.batchDuration.Observe(d.Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrSchemaUnavailable):
		return "schema_unavailable"
	default:
		return "error"
	}
}
