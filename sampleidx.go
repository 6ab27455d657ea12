package sampleidx

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/query"
	"github.com/hupe1980/sampleidx/resource"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/store"
	"github.com/hupe1980/sampleidx/variant"
)

// DB is the sample index of one study, bound to one schema version.
type DB struct {
	study    string
	schema   *schema.SampleIndexSchema
	registry *schema.Registry
	backend  store.Backend
	index    *store.SampleIndexDB
	parser   *query.Parser
	opts     options
	closed   atomic.Bool
}

// New creates a DB over backend. The DB owns the backend and closes it on
// Close. The schema is registered in the registry; the first registered
// version of a registry becomes its active version.
func New(study string, backend store.Backend, s *schema.SampleIndexSchema, md query.Metadata, optFns ...Option) (*DB, error) {
	switch {
	case backend == nil:
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	case s == nil:
		return nil, fmt.Errorf("%w: nil schema", ErrInvalidArgument)
	case md == nil:
		return nil, fmt.Errorf("%w: nil metadata", ErrInvalidArgument)
	}

	o := applyOptions(optFns)
	if o.registry == nil {
		o.registry = schema.NewRegistry()
	}
	if err := o.registry.Register(s); err != nil && !errors.Is(err, schema.ErrVersionExists) {
		return nil, err
	}
	if _, err := o.registry.Active(); errors.Is(err, schema.ErrNoActiveVersion) {
		if err := o.registry.Activate(s.Version()); err != nil {
			return nil, err
		}
	}

	if o.controller != nil {
		backend = resource.Throttle(backend, o.controller)
	}
	logger := o.logger.WithStudy(study)
	o.logger = logger

	storeOpts := []store.Option{
		store.WithLogger(logger.Logger),
		store.WithRecorder(o.metricsCollector),
	}
	if o.workers > 0 {
		storeOpts = append(storeOpts, store.WithWorkers(o.workers))
	}
	if o.maxPending > 0 {
		storeOpts = append(storeOpts, store.WithMaxPending(o.maxPending))
	}
	parserOpts := []query.ParserOption{query.WithLogger(logger.Logger)}
	if len(o.loadedGenotypes) > 0 {
		parserOpts = append(parserOpts, query.WithLoadedGenotypes(o.loadedGenotypes...))
	}

	return &DB{
		study:    study,
		schema:   s,
		registry: o.registry,
		backend:  backend,
		index:    store.New(backend, s, storeOpts...),
		parser:   query.NewParser(s, md, parserOpts...),
		opts:     o,
	}, nil
}

// LoadSchema reads an index configuration file and builds the schema of
// version from it.
func LoadSchema(path string, version int) (*schema.SampleIndexSchema, error) {
	cfg, err := schema.LoadConfiguration(path)
	if err != nil {
		return nil, err
	}
	return schema.New(version, cfg)
}

// Study returns the study of the DB.
func (db *DB) Study() string { return db.study }

// Schema returns the schema the DB reads and writes.
func (db *DB) Schema() *schema.SampleIndexSchema { return db.schema }

// Registry returns the schema registry of the study.
func (db *DB) Registry() *schema.Registry { return db.registry }

// Status returns the registry status of the DB's schema version.
func (db *DB) Status() (schema.Status, error) {
	_, status, err := db.registry.Get(db.schema.Version())
	return status, err
}

// NewBuilder returns an entry builder for one sample. The builder logs
// through the DB logger unless opts set another one.
func (db *DB) NewBuilder(sampleID int, opts ...entry.BuilderOption) *entry.Builder {
	opts = append([]entry.BuilderOption{entry.WithLogger(db.opts.logger.Logger)}, opts...)
	return entry.NewBuilder(db.schema, sampleID, opts...)
}

// Valid reports whether the index can answer q.
func (db *DB) Valid(q query.VariantQuery) bool {
	return db.parser.Valid(q)
}

// Parse translates a variant query into a sample index query. The returned
// VariantQuery holds the filters the index does not answer exactly.
func (db *DB) Parse(q query.VariantQuery) (*query.SampleIndexQuery, query.VariantQuery, error) {
	if !db.parser.Valid(q) {
		return nil, nil, fmt.Errorf("%w: no indexed sample or genotype filter", ErrInvalidQuery)
	}
	if q.Get(query.ParamStudy) == "" {
		q = q.Clone()
		q[query.ParamStudy] = db.study
	}
	siq, rem, err := db.parser.Parse(q)
	if err != nil {
		return nil, nil, translateError(err)
	}
	return siq, rem, nil
}

// Query answers a variant query from the index. The returned VariantQuery
// lists the filters that still have to be applied to the variants.
func (db *DB) Query(ctx context.Context, q query.VariantQuery) (iter.Seq2[variant.Variant, error], query.VariantQuery, error) {
	if db.closed.Load() {
		return nil, nil, ErrClosed
	}
	siq, rem, err := db.Parse(q)
	if err != nil {
		return nil, nil, err
	}
	return db.Iterate(ctx, siq), rem, nil
}

// Iterate runs a parsed sample index query. Variants are returned in
// genomic order; several samples are joined with the query's operation.
func (db *DB) Iterate(ctx context.Context, q *query.SampleIndexQuery) iter.Seq2[variant.Variant, error] {
	return func(yield func(variant.Variant, error) bool) {
		start := time.Now()
		results := 0
		var err error
		defer func() {
			dur := time.Since(start)
			db.opts.metricsCollector.RecordQuery(q.Len(), results, dur, err)
			db.opts.logger.LogQuery(ctx, q.Len(), results, dur, err)
		}()

		if db.closed.Load() {
			err = ErrClosed
			yield(variant.Variant{}, err)
			return
		}
		for v, e := range db.variants(ctx, q) {
			if e != nil {
				err = translateError(e)
				yield(variant.Variant{}, err)
				return
			}
			results++
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (db *DB) variants(ctx context.Context, q *query.SampleIndexQuery) iter.Seq2[variant.Variant, error] {
	if q.Len() != 1 {
		return db.index.MultiSampleIterator(ctx, q)
	}
	return func(yield func(variant.Variant, error) bool) {
		it, err := db.index.Iterator(ctx, q.Queries()[0])
		if err != nil {
			yield(variant.Variant{}, err)
			return
		}
		for v, err := range it.All() {
			if !yield(v, err) {
				return
			}
		}
	}
}

// Count counts the variants matching q. Single sample queries without
// variant level filters are answered from the stored genotype counts.
// Queries the index answers only approximately fail with ErrInexactCount
// naming the remaining parameters.
func (db *DB) Count(ctx context.Context, q query.VariantQuery) (n int, err error) {
	if db.closed.Load() {
		return 0, ErrClosed
	}
	start := time.Now()
	samples := 0
	defer func() {
		db.opts.metricsCollector.RecordCount(n, time.Since(start), err)
		db.opts.logger.LogCount(ctx, samples, n, err)
	}()

	siq, rem, err := db.Parse(q)
	if err != nil {
		return 0, err
	}
	if params := remaining(rem); len(params) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrInexactCount, params)
	}
	samples = siq.Len()
	if samples == 1 {
		n, err = db.index.Count(ctx, siq.Queries()[0])
		return n, translateError(err)
	}
	for _, err := range db.index.MultiSampleIterator(ctx, siq) {
		if err != nil {
			return 0, translateError(err)
		}
		n++
	}
	return n, nil
}

// remaining lists the filter parameters of rem. The study only selects the
// index and is not a filter.
func remaining(rem query.VariantQuery) []query.Param {
	return slices.DeleteFunc(rem.Params(), func(p query.Param) bool { return p == query.ParamStudy })
}

// Read returns the stored entry of the batch containing position.
func (db *DB) Read(ctx context.Context, sampleID int, chromosome string, position int) (*entry.SampleIndexEntry, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	e, err := db.index.Read(ctx, sampleID, chromosome, position)
	return e, translateError(err)
}

// MergeExisting loads the stored rows of the regions into b, so that
// writing b keeps the variants already indexed there.
func (db *DB) MergeExisting(ctx context.Context, b *entry.Builder, regions ...variant.Region) error {
	if db.closed.Load() {
		return ErrClosed
	}
	return translateError(db.index.MergeExisting(ctx, b, regions...))
}

// Write builds the builders and writes their rows.
func (db *DB) Write(ctx context.Context, builders ...*entry.Builder) (err error) {
	if db.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	rows, bytes := 0, 0
	defer func() {
		db.opts.metricsCollector.RecordWrite(rows, bytes, time.Since(start), err)
		db.opts.logger.LogWrite(ctx, len(builders), rows, err)
	}()

	ms, err := store.Mutations(builders...)
	if err != nil {
		return err
	}
	rows, bytes = len(ms), resource.MutationBytes(ms)
	return translateError(db.index.Apply(ctx, ms))
}

// Close closes the backend. It is safe to call Close more than once.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.backend.Close()
}
