package query

import (
	"slices"

	"github.com/hupe1980/sampleidx/schema"
)

// SampleIndexQuery selects variants across samples. With OpAnd a variant
// must be selected for every sample, with OpOr for any.
type SampleIndexQuery struct {
	Schema  *schema.SampleIndexSchema
	Study   string
	Op      Operation
	queries map[string]*SingleSampleIndexQuery
	order   []string
}

// NewSampleIndexQuery groups per sample queries.
func NewSampleIndexQuery(s *schema.SampleIndexSchema, study string, op Operation, qs ...*SingleSampleIndexQuery) *SampleIndexQuery {
	q := &SampleIndexQuery{Schema: s, Study: study, Op: op, queries: make(map[string]*SingleSampleIndexQuery, len(qs))}
	for _, sq := range qs {
		q.Add(sq)
	}
	return q
}

// Add adds or replaces the query of a sample.
func (q *SampleIndexQuery) Add(sq *SingleSampleIndexQuery) {
	if _, ok := q.queries[sq.Sample]; !ok {
		q.order = append(q.order, sq.Sample)
	}
	q.queries[sq.Sample] = sq
}

// Samples returns the sample names in insertion order.
func (q *SampleIndexQuery) Samples() []string { return slices.Clone(q.order) }

// ForSample returns the query of one sample.
func (q *SampleIndexQuery) ForSample(sample string) (*SingleSampleIndexQuery, bool) {
	sq, ok := q.queries[sample]
	return sq, ok
}

// Queries returns the per sample queries in insertion order.
func (q *SampleIndexQuery) Queries() []*SingleSampleIndexQuery {
	out := make([]*SingleSampleIndexQuery, len(q.order))
	for i, s := range q.order {
		out[i] = q.queries[s]
	}
	return out
}

// Len returns the number of samples.
func (q *SampleIndexQuery) Len() int { return len(q.order) }
