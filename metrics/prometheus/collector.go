// Package prometheus exports sample index metrics to Prometheus.
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/sampleidx"
)

var _ sampleidx.MetricsCollector = (*Collector)(nil)

const namespace = "sampleidx"

// Collector implements sampleidx.MetricsCollector with Prometheus metrics.
type Collector struct {
	latency *prom.HistogramVec
	ops     *prom.CounterVec
	results prom.Counter
	rows    *prom.CounterVec
	bytes   prom.Counter
	samples prom.Histogram
	counted prom.Counter
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	constLabels prom.Labels
	buckets     []float64
}

// WithConstLabels adds labels to every metric, e.g. the study.
func WithConstLabels(l prom.Labels) Option {
	return func(o *options) { o.constLabels = l }
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// New creates a Collector and registers its metrics with reg.
func New(reg prom.Registerer, optFns ...Option) (*Collector, error) {
	o := options{buckets: prom.DefBuckets}
	for _, fn := range optFns {
		fn(&o)
	}

	c := &Collector{
		latency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of sample index operations",
			Buckets:     o.buckets,
			ConstLabels: o.constLabels,
		}, []string{"op", "status"}),
		ops: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Sample index operations by kind and status",
			ConstLabels: o.constLabels,
		}, []string{"op", "status"}),
		results: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "query_results_total",
			Help:        "Variants returned by queries",
			ConstLabels: o.constLabels,
		}),
		rows: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_total",
			Help:        "Sample index rows read or written",
			ConstLabels: o.constLabels,
		}, []string{"op"}),
		bytes: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "written_bytes_total",
			Help:        "Column bytes written",
			ConstLabels: o.constLabels,
		}),
		samples: prom.NewHistogram(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        "query_samples",
			Help:        "Samples joined by one query",
			Buckets:     []float64{1, 2, 3, 5, 10, 20, 50},
			ConstLabels: o.constLabels,
		}),
		counted: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "counted_variants_total",
			Help:        "Variants counted by count queries",
			ConstLabels: o.constLabels,
		}),
	}

	for _, m := range []prom.Collector{c.latency, c.ops, c.results, c.rows, c.bytes, c.samples, c.counted} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prom.Registerer, optFns ...Option) *Collector {
	c, err := New(reg, optFns...)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.latency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordQuery implements sampleidx.MetricsCollector.
func (c *Collector) RecordQuery(samples, results int, d time.Duration, err error) {
	c.observe("query", d, err)
	c.samples.Observe(float64(samples))
	c.results.Add(float64(results))
}

// RecordCount implements sampleidx.MetricsCollector.
func (c *Collector) RecordCount(count int, d time.Duration, err error) {
	c.observe("count", d, err)
	c.counted.Add(float64(count))
}

// RecordWrite implements sampleidx.MetricsCollector.
func (c *Collector) RecordWrite(rows, bytes int, d time.Duration, err error) {
	c.observe("write", d, err)
	c.rows.WithLabelValues("write").Add(float64(rows))
	c.bytes.Add(float64(bytes))
}

// RecordScan implements sampleidx.MetricsCollector.
func (c *Collector) RecordScan(rows int, d time.Duration, err error) {
	c.observe("scan", d, err)
	c.rows.WithLabelValues("scan").Add(float64(rows))
}
