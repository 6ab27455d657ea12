// Package filter applies sample index queries to decoded entries.
//
// An EntryFilter walks the genotype columns of an entry with entry.Cursor,
// tests every variant against the locus, file, annotation, parents and
// mendelian filters of a query, and merges the per genotype results in
// genomic order. Iteration is lazy: nothing is decoded before the sequence
// is ranged over.
package filter

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/query"
)

// ErrQuery wraps every decode or filter failure.
var ErrQuery = errors.New("sample index query failed")

// Option configures an EntryFilter.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for per entry debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// EntryFilter applies one single sample query to entries of that sample.
type EntryFilter[T any] struct {
	query  *query.SingleSampleIndexQuery
	conv   Converter[T]
	logger *slog.Logger
}

// New returns a filter for q producing values with conv.
func New[T any](q *query.SingleSampleIndexQuery, conv Converter[T], optFns ...Option) *EntryFilter[T] {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range optFns {
		fn(&o)
	}
	return &EntryFilter[T]{query: q, conv: conv, logger: o.logger}
}

// Query returns the query of the filter.
func (f *EntryFilter[T]) Query() *query.SingleSampleIndexQuery { return f.query }

// Compare orders values of T by genomic position.
func (f *EntryFilter[T]) Compare(a, b T) int { return f.conv.Compare(a, b) }

// SameGenomicVariant reports whether a and b are the same variant.
func (f *EntryFilter[T]) SameGenomicVariant(a, b T) bool { return f.conv.SameGenomicVariant(a, b) }

// Filter yields the variants of e accepted by the query in genomic order.
// A schema version mismatch is reported before anything is decoded.
func (f *EntryFilter[T]) Filter(e *entry.SampleIndexEntry) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := f.query.CheckSchema(e); err != nil {
			yield(zero, fmt.Errorf("%w: %w", ErrQuery, err))
			return
		}
		loci, ok := f.query.LocusQueriesFor(e.Chromosome, e.BatchStart)
		if !ok {
			return
		}
		gts := f.query.AcceptedGenotypes(e)
		f.logger.Debug("filtering entry",
			slog.Int("sample", e.SampleID),
			slog.String("chromosome", e.Chromosome),
			slog.Int("batch", e.BatchStart),
			slog.Any("genotypes", gts),
			slog.Int("loci", len(loci)),
		)
		seqs := make([]iter.Seq2[T, error], 0, len(gts))
		for _, gt := range gts {
			seqs = append(seqs, f.genotype(e, gt, loci))
		}
		if len(seqs) == 0 {
			return
		}
		// A variant stored under several genotypes is yielded once.
		var same func(a, b T) bool
		if e.Discrepancies > 0 {
			same = f.conv.SameGenomicVariant
		}
		Merge(f.conv.Compare, same, seqs...)(yield)
	}
}

// genotype yields the accepted variants of one genotype. A variant matching
// several locus queries is yielded once.
func (f *EntryFilter[T]) genotype(e *entry.SampleIndexEntry, gt string, loci []query.LocusQuery) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		c, err := entry.NewCursor(f.query.Schema, e, gt)
		if err != nil {
			yield(zero, fmt.Errorf("%w: %w", ErrQuery, err))
			return
		}
		for c.Next() {
			ok, err := f.test(c, loci)
			if err != nil {
				yield(zero, fmt.Errorf("%w: %s %s: %w", ErrQuery, gt, c.Variant(), err))
				return
			}
			if !ok {
				continue
			}
			v, err := f.conv.Convert(c)
			if err != nil {
				yield(zero, fmt.Errorf("%w: %s %s: %w", ErrQuery, gt, c.Variant(), err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(zero, fmt.Errorf("%w: genotype %s: %w", ErrQuery, gt, err))
		}
	}
}

func (f *EntryFilter[T]) test(c *entry.Cursor, loci []query.LocusQuery) (bool, error) {
	q := f.query
	if loci != nil {
		v := c.Variant()
		matched := false
		for _, lq := range loci {
			if lq.Test(v) {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	if q.HasFileFilter() {
		ok, err := q.TestFileIndex(c.FileIndex())
		if err != nil || !ok {
			return false, err
		}
	}
	if aq := q.AnnotationQuery; !aq.IsEmpty() && c.HasAnnotation() {
		if !aq.TestSummary(c.Summary()) {
			return false, nil
		}
		if !aq.SummaryOnly() {
			a, err := c.Annotation()
			if err != nil {
				return false, err
			}
			if !aq.Test(a) {
				return false, nil
			}
		}
	}
	if q.HasParentsFilter() && !q.TestParents(c.Parents()) {
		return false, nil
	}
	if q.MendelianErrorsOnly && !c.MendelianError() {
		return false, nil
	}
	return true, nil
}

// Count returns the number of variants of e accepted by the query. Stored
// genotype counts are used when no variant filter applies, and annotation
// counts when the query only requires one summary bit. Entries holding a
// variant under more than one accepted genotype are always counted by
// iteration.
func (f *EntryFilter[T]) Count(e *entry.SampleIndexEntry) (int, error) {
	if err := f.query.CheckSchema(e); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	loci, ok := f.query.LocusQueriesFor(e.Chromosome, e.BatchStart)
	if !ok {
		return 0, nil
	}
	gts := f.query.AcceptedGenotypes(e)
	if len(gts) == 0 {
		return 0, nil
	}
	if loci == nil {
		q := f.query
		stored := e.Discrepancies == 0 || len(gts) == 1
		if stored && q.AnnotationQuery.IsEmpty() && !q.HasFileFilter() && !q.HasParentsFilter() && !q.MendelianErrorsOnly {
			return e.Count(gts...), nil
		}
		if stored {
			if n, ok := f.annotationCount(e, gts); ok {
				return n, nil
			}
		}
	}
	n := 0
	for _, err := range f.Filter(e) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (f *EntryFilter[T]) annotationCount(e *entry.SampleIndexEntry, gts []string) (int, bool) {
	q := f.query
	aq := q.AnnotationQuery
	if aq.IsEmpty() || !aq.SummaryOnly() || aq.Mask != aq.Value ||
		q.HasFileFilter() || q.HasParentsFilter() || q.MendelianErrorsOnly {
		return 0, false
	}
	total := 0
	for _, gt := range gts {
		n, ok := e.Gts[gt].AnnotationCount(aq.Mask)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}
