package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/filter"
	"github.com/hupe1980/sampleidx/query"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
)

// Option configures a SampleIndexDB.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	workers    int
	maxPending int
	recorder   Recorder
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWorkers sets the number of decode workers per scan.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxPending bounds the rows buffered per scan.
func WithMaxPending(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPending = n
		}
	}
}

// WithRecorder receives the statistics of every scan.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// SampleIndexDB reads and writes the sample index of one study and schema
// version through a Backend.
type SampleIndexDB struct {
	backend Backend
	schema  *schema.SampleIndexSchema
	opts    options
}

// New returns a SampleIndexDB over b. The backend is owned by the caller.
func New(b Backend, s *schema.SampleIndexSchema, optFns ...Option) *SampleIndexDB {
	o := options{
		logger:     slog.New(slog.DiscardHandler),
		workers:    DefaultWorkers,
		maxPending: DefaultMaxPending,
		recorder:   noopRecorder{},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return &SampleIndexDB{backend: b, schema: s, opts: o}
}

// Schema returns the schema entries are written with.
func (db *SampleIndexDB) Schema() *schema.SampleIndexSchema { return db.schema }

// Backend returns the underlying backend.
func (db *SampleIndexDB) Backend() Backend { return db.backend }

// ScanRanges plans the row ranges a query reads, ordered by chromosome and
// batch. Without locus queries every chromosome of the sample is read.
func (db *SampleIndexDB) ScanRanges(ctx context.Context, q *query.SingleSampleIndexQuery) ([]ScanRange, error) {
	if len(q.LocusQueries) == 0 {
		chroms, err := db.backend.Chromosomes(ctx, q.SampleID)
		if err != nil {
			return nil, err
		}
		chroms = slices.Clone(chroms)
		slices.SortFunc(chroms, variant.CompareChromosome)
		ranges := make([]ScanRange, len(chroms))
		for i, c := range chroms {
			ranges[i] = FullRange(q.SampleID, c)
		}
		return ranges, nil
	}
	regions := query.ScanRegions(q.LocusQueries)
	ranges := make([]ScanRange, len(regions))
	for i, r := range regions {
		ranges[i] = ScanRange{
			SampleID:   q.SampleID,
			Chromosome: r.Chromosome,
			FromBatch:  variant.BatchStart(r.Start),
			ToBatch:    variant.BatchStart(r.End),
		}
	}
	return ranges, nil
}

// withSchema returns q, or a shallow copy of q bound to the DB schema when q
// has none. The caller's query is never modified.
func (db *SampleIndexDB) withSchema(q *query.SingleSampleIndexQuery) *query.SingleSampleIndexQuery {
	if q.Schema != nil {
		return q
	}
	qc := *q
	qc.Schema = db.schema
	return &qc
}

func scan[T any](ctx context.Context, db *SampleIndexDB, q *query.SingleSampleIndexQuery, convert func(*entry.SampleIndexEntry) ([]T, error)) (*ScanIterator[T], error) {
	ranges, err := db.ScanRanges(ctx, q)
	if err != nil {
		return nil, err
	}
	db.opts.logger.Debug("scanning sample index",
		slog.String("query", q.String()),
		slog.Int("ranges", len(ranges)),
	)
	return newScanIterator(ctx, db.backend, ranges, convert, db.opts.workers, db.opts.maxPending, db.opts.recorder), nil
}

func collectFilter[T any](f *filter.EntryFilter[T]) func(*entry.SampleIndexEntry) ([]T, error) {
	return func(e *entry.SampleIndexEntry) ([]T, error) {
		var out []T
		for v, err := range f.Filter(e) {
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}

// Iterator returns the variants of one sample selected by q in genomic
// order.
func (db *SampleIndexDB) Iterator(ctx context.Context, q *query.SingleSampleIndexQuery) (*ScanIterator[variant.Variant], error) {
	q = db.withSchema(q)
	f := filter.New(q, filter.VariantConverter{}, filter.WithLogger(db.opts.logger))
	return scan(ctx, db, q, collectFilter(f))
}

// RawIterator is Iterator yielding the decoded index columns of every
// variant.
func (db *SampleIndexDB) RawIterator(ctx context.Context, q *query.SingleSampleIndexQuery) (*ScanIterator[entry.SampleIndexVariant], error) {
	q = db.withSchema(q)
	f := filter.New(q, filter.SampleVariantConverter{}, filter.WithLogger(db.opts.logger))
	return scan(ctx, db, q, collectFilter(f))
}

// Count returns the number of variants selected by q.
func (db *SampleIndexDB) Count(ctx context.Context, q *query.SingleSampleIndexQuery) (int, error) {
	q = db.withSchema(q)
	f := filter.New(q, filter.VariantConverter{}, filter.WithLogger(db.opts.logger))
	it, err := scan(ctx, db, q, func(e *entry.SampleIndexEntry) ([]int, error) {
		n, err := f.Count(e)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	total := 0
	for it.Next() {
		total += it.Value()
	}
	return total, it.Err()
}

// MultiSampleIterator combines the per sample iterators of q. With
// query.OpAnd a variant is yielded when every sample has it, with query.OpOr
// when any does. The underlying scans are closed when ranging stops.
func (db *SampleIndexDB) MultiSampleIterator(ctx context.Context, q *query.SampleIndexQuery) iter.Seq2[variant.Variant, error] {
	return func(yield func(variant.Variant, error) bool) {
		qs := q.Queries()
		if len(qs) == 0 {
			return
		}
		seqs := make([]iter.Seq2[variant.Variant, error], 0, len(qs))
		for _, sq := range qs {
			it, err := db.Iterator(ctx, sq)
			if err != nil {
				yield(variant.Variant{}, err)
				return
			}
			defer it.Close()
			seqs = append(seqs, it.All())
		}
		if q.Op == query.OpAnd {
			filter.Intersect(variant.Compare, seqs...)(yield)
			return
		}
		filter.Union(variant.Compare, variant.SameGenomicVariant, seqs...)(yield)
	}
}

// Read returns one stored entry.
func (db *SampleIndexDB) Read(ctx context.Context, sampleID int, chromosome string, batchStart int) (*entry.SampleIndexEntry, error) {
	batchStart = variant.BatchStart(batchStart)
	r := ScanRange{SampleID: sampleID, Chromosome: chromosome, FromBatch: batchStart, ToBatch: batchStart}
	for rec, err := range db.backend.Scan(ctx, r) {
		if err != nil {
			return nil, err
		}
		e, err := db.backend.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: row %s: %w", ErrQuery, rowName(rec), err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: %d/%s:%d", ErrNotFound, sampleID, chromosome, batchStart)
}

// MergeExisting loads the stored entries of the given batches into b so
// that b rewrites them as a whole. Missing rows are skipped.
func (db *SampleIndexDB) MergeExisting(ctx context.Context, b *entry.Builder, batches ...variant.Region) error {
	for _, r := range batches {
		for start := variant.BatchStart(r.Start); start <= r.End; start += variant.BatchSize {
			e, err := db.Read(ctx, b.SampleID(), r.Chromosome, start)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := db.schema.CheckVersion(e.SchemaVersion); err != nil {
				return err
			}
			if err := b.Merge(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mutations builds every builder and returns the non-empty mutations.
func Mutations(builders ...*entry.Builder) ([]entry.Mutation, error) {
	var ms []entry.Mutation
	for _, b := range builders {
		bm, err := b.Mutations()
		if err != nil {
			return nil, fmt.Errorf("build sample %d: %w", b.SampleID(), err)
		}
		for _, m := range bm {
			if !m.Empty() {
				ms = append(ms, m)
			}
		}
	}
	return ms, nil
}

// Write builds every builder and applies the resulting mutations.
func (db *SampleIndexDB) Write(ctx context.Context, builders ...*entry.Builder) error {
	ms, err := Mutations(builders...)
	if err != nil {
		return err
	}
	return db.Apply(ctx, ms)
}

// Apply writes mutations produced by Mutations.
func (db *SampleIndexDB) Apply(ctx context.Context, ms []entry.Mutation) error {
	if len(ms) == 0 {
		return nil
	}
	if err := db.backend.Apply(ctx, ms); err != nil {
		return err
	}
	db.opts.logger.Debug("wrote sample index", slog.Int("rows", len(ms)))
	return nil
}
