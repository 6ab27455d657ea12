package sampleidx

import (
	"log/slog"

	"github.com/hupe1980/sampleidx/resource"
	"github.com/hupe1980/sampleidx/schema"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	workers          int
	maxPending       int
	controller       *resource.Controller
	registry         *schema.Registry
	loadedGenotypes  []string
}

// Option configures a DB.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &sampleidx.BasicMetricsCollector{}
//	db, _ := sampleidx.New("study", backend, s, md, sampleidx.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := sampleidx.NewJSONLogger(slog.LevelInfo)
//	db, _ := sampleidx.New("study", backend, s, md, sampleidx.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithWorkers sets the number of decode workers per sample scan.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMaxPending bounds the rows a sample scan buffers ahead of the reader.
func WithMaxPending(n int) Option {
	return func(o *options) {
		o.maxPending = n
	}
}

// WithResourceController throttles writes to the backend.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithRegistry shares a schema registry between the DBs of a study. By
// default every DB has its own.
func WithRegistry(r *schema.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLoadedGenotypes lists the genotypes the index was built with.
// Genotype filters outside this list are not answered by the index.
func WithLoadedGenotypes(gts ...string) Option {
	return func(o *options) {
		o.loadedGenotypes = gts
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
