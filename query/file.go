package query

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
)

// FileFieldFilter filters one custom field of the file index.
type FileFieldFilter struct {
	// Index is the position of the field among the custom fields.
	Index  int
	Filter field.Filter
}

// SampleFileIndexQuery filters the per-file index entries of a sample. A
// variant passes when any of its file index entries passes.
type SampleFileIndexQuery struct {
	Sample string
	// FilePositions is nil when any file is accepted.
	FilePositions *bitset.BitSet
	VariantType   field.Filter
	Filters       []FileFieldFilter
}

// IsEmpty reports whether the query accepts every file index entry.
func (q *SampleFileIndexQuery) IsEmpty() bool {
	if q == nil {
		return true
	}
	if q.FilePositions != nil || !field.IsNoOp(q.VariantType) {
		return false
	}
	for _, f := range q.Filters {
		if !field.IsNoOp(f.Filter) {
			return false
		}
	}
	return true
}

// IsExact reports whether passing entries need no post filter.
func (q *SampleFileIndexQuery) IsExact() bool {
	if q == nil {
		return true
	}
	if !field.IsExact(q.VariantType) {
		return false
	}
	for _, f := range q.Filters {
		if !field.IsExact(f.Filter) {
			return false
		}
	}
	return true
}

// TestEntry tests one encoded file index entry.
func (q *SampleFileIndexQuery) TestEntry(s *schema.FileIndexSchema, buf *bitio.BitBuffer) (bool, error) {
	if q.FilePositions != nil {
		pos, err := s.FilePositionOf(buf)
		if err != nil {
			return false, err
		}
		if !q.FilePositions.Test(uint(pos)) {
			return false, nil
		}
	}
	if !field.IsNoOp(q.VariantType) {
		code, err := s.VariantTypeCode(buf)
		if err != nil {
			return false, err
		}
		if !q.VariantType.Test(code) {
			return false, nil
		}
	}
	for _, f := range q.Filters {
		if field.IsNoOp(f.Filter) {
			continue
		}
		code, err := s.CustomCode(buf, f.Index)
		if err != nil {
			return false, err
		}
		if !f.Filter.Test(code) {
			return false, nil
		}
	}
	return true, nil
}

// Test reports whether any of the file index entries of a variant passes.
func (q *SampleFileIndexQuery) Test(s *schema.FileIndexSchema, entries []*bitio.BitBuffer) (bool, error) {
	if q.IsEmpty() {
		return true, nil
	}
	for _, buf := range entries {
		ok, err := q.TestEntry(s, buf)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (q *SampleFileIndexQuery) String() string {
	if q.IsEmpty() {
		return "file{}"
	}
	var parts []string
	if q.FilePositions != nil {
		parts = append(parts, fmt.Sprintf("position in %v", q.FilePositions))
	}
	if !field.IsNoOp(q.VariantType) {
		parts = append(parts, q.VariantType.String())
	}
	for _, f := range q.Filters {
		if !field.IsNoOp(f.Filter) {
			parts = append(parts, f.Filter.String())
		}
	}
	return "file{" + q.Sample + ": " + strings.Join(parts, ", ") + "}"
}
