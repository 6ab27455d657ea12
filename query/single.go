package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
)

// ParentFilter lists the accepted genotype codes of a parent. The zero value
// is not a filter; use HasParentFilter.
type ParentFilter [schema.NumGenotypeCodes]bool

// NewParentFilter accepts the codes of gts.
func NewParentFilter(codec schema.GenotypeCodec, gts ...string) ParentFilter {
	var f ParentFilter
	for _, gt := range gts {
		f[codec.Encode(gt)] = true
	}
	return f
}

// IsExact reports whether no ambiguous code is accepted, so the parent
// genotypes are fully answered by the index.
func (f ParentFilter) IsExact(codec schema.GenotypeCodec) bool {
	for code, ok := range f {
		if ok && codec.IsAmbiguous(code) {
			return false
		}
	}
	return true
}

// SingleSampleIndexQuery selects variants of one sample.
type SingleSampleIndexQuery struct {
	Schema   *schema.SampleIndexSchema
	Study    string
	Sample   string
	SampleID int

	// Genotypes lists the accepted genotype columns. IncludeAll, or an empty
	// list, accepts every genotype of the entry.
	Genotypes  []string
	IncludeAll bool

	FileQueries     []*SampleFileIndexQuery
	FileOp          Operation
	AnnotationQuery *SampleAnnotationIndexQuery
	LocusQueries    []LocusQuery

	MendelianErrorsOnly bool
	FatherFilter        *ParentFilter
	MotherFilter        *ParentFilter
}

// AcceptedGenotypes returns the genotypes of e the query reads, sorted.
func (q *SingleSampleIndexQuery) AcceptedGenotypes(e *entry.SampleIndexEntry) []string {
	if q.IncludeAll || len(q.Genotypes) == 0 {
		return e.Genotypes()
	}
	out := make([]string, 0, len(q.Genotypes))
	for _, gt := range q.Genotypes {
		if _, ok := e.Gts[gt]; ok && !slices.Contains(out, gt) {
			out = append(out, gt)
		}
	}
	slices.Sort(out)
	return out
}

// LocusQueriesFor returns the locus queries overlapping the batch of e. ok
// is false when the batch is outside every locus query. A nil slice with ok
// set means no locus filter applies.
func (q *SingleSampleIndexQuery) LocusQueriesFor(chromosome string, batchStart int) (qs []LocusQuery, ok bool) {
	if len(q.LocusQueries) == 0 {
		return nil, true
	}
	for _, lq := range q.LocusQueries {
		if !lq.MatchesWithBatch(chromosome, batchStart) {
			continue
		}
		if !lq.HasFilter() {
			return nil, true
		}
		qs = append(qs, lq)
	}
	return qs, len(qs) > 0
}

// HasFileFilter reports whether any file query filters.
func (q *SingleSampleIndexQuery) HasFileFilter() bool {
	for _, f := range q.FileQueries {
		if !f.IsEmpty() {
			return true
		}
	}
	return false
}

// TestFileIndex applies the file queries to the file index entries of a
// variant.
func (q *SingleSampleIndexQuery) TestFileIndex(entries []*bitio.BitBuffer) (bool, error) {
	fi := q.Schema.FileIndex()
	or := q.FileOp == OpOr
	tested := false
	for _, f := range q.FileQueries {
		if f.IsEmpty() {
			continue
		}
		tested = true
		ok, err := f.Test(fi, entries)
		if err != nil {
			return false, err
		}
		if or && ok {
			return true, nil
		}
		if !or && !ok {
			return false, nil
		}
	}
	return !or || !tested, nil
}

// HasParentsFilter reports whether a father or mother filter is set.
func (q *SingleSampleIndexQuery) HasParentsFilter() bool {
	return q.FatherFilter != nil || q.MotherFilter != nil
}

// TestParents tests the parents code of a variant. Variants without parents
// index only pass when no parents filter is set.
func (q *SingleSampleIndexQuery) TestParents(parents byte, ok bool) bool {
	if !q.HasParentsFilter() {
		return true
	}
	if !ok {
		return false
	}
	father, mother := q.Schema.Genotype().SplitParents(parents)
	if q.FatherFilter != nil && !q.FatherFilter[father] {
		return false
	}
	if q.MotherFilter != nil && !q.MotherFilter[mother] {
		return false
	}
	return true
}

// IsCountOnly reports whether counting can use the stored genotype counts
// without decoding any variant.
func (q *SingleSampleIndexQuery) IsCountOnly() bool {
	for _, lq := range q.LocusQueries {
		if lq.HasFilter() {
			return false
		}
	}
	return q.AnnotationQuery.IsEmpty() &&
		!q.HasFileFilter() &&
		!q.HasParentsFilter() &&
		!q.MendelianErrorsOnly
}

// CheckSchema fails when the query is bound to another schema version than
// the entry.
func (q *SingleSampleIndexQuery) CheckSchema(e *entry.SampleIndexEntry) error {
	return q.Schema.CheckVersion(e.SchemaVersion)
}

func (q *SingleSampleIndexQuery) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s(%d) v%d gts=%v", q.Study, q.Sample, q.SampleID, q.Schema.Version(), q.Genotypes)
	if len(q.LocusQueries) > 0 {
		fmt.Fprintf(&b, " loci=%v", q.LocusQueries)
	}
	for _, f := range q.FileQueries {
		if !f.IsEmpty() {
			b.WriteString(" " + f.String())
		}
	}
	if !q.AnnotationQuery.IsEmpty() {
		b.WriteString(" " + q.AnnotationQuery.String())
	}
	if q.HasParentsFilter() {
		b.WriteString(" parents")
	}
	if q.MendelianErrorsOnly {
		b.WriteString(" mendelianErrors")
	}
	return b.String()
}
