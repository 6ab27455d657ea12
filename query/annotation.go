package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/schema"
)

// Operation combines sub filters.
type Operation string

const (
	OpAnd Operation = "AND"
	OpOr  Operation = "OR"
)

// PopulationFrequencyQuery filters the frequency bucket of one population.
type PopulationFrequencyQuery struct {
	// Index is the position of the population in the schema.
	Index  int
	Key    string
	Filter *field.RangeFilter
}

// SampleAnnotationIndexQuery filters the annotation index of a variant.
//
// Mask and Value test the summary byte: a variant passes when
// summary&Mask == Value. The remaining filters are optional and nil when
// unused.
type SampleAnnotationIndexQuery struct {
	Mask  byte
	Value byte

	ConsequenceType field.Filter
	Biotype         field.Filter
	TranscriptFlag  field.Filter
	CtBtTf          *field.CombinationFilter

	PopulationFrequency   []PopulationFrequencyQuery
	PopulationFrequencyOp Operation

	ClinicalSource       field.Filter
	ClinicalSignificance field.Filter
}

// IsEmpty reports whether the query accepts every annotation, in which case
// annotation columns need not be decoded.
func (q *SampleAnnotationIndexQuery) IsEmpty() bool {
	if q == nil {
		return true
	}
	return q.Mask == 0 &&
		field.IsNoOp(q.ConsequenceType) &&
		field.IsNoOp(q.Biotype) &&
		field.IsNoOp(q.TranscriptFlag) &&
		(q.CtBtTf == nil || q.CtBtTf.IsNoOp()) &&
		q.popFreqNoOp() &&
		field.IsNoOp(q.ClinicalSource) &&
		field.IsNoOp(q.ClinicalSignificance)
}

func (q *SampleAnnotationIndexQuery) popFreqNoOp() bool {
	for _, p := range q.PopulationFrequency {
		if !p.Filter.IsNoOp() {
			return false
		}
	}
	return true
}

// TestSummary tests the summary byte alone.
func (q *SampleAnnotationIndexQuery) TestSummary(summary byte) bool {
	return q == nil || summary&q.Mask == q.Value
}

// SummaryOnly reports whether TestSummary decides the whole query.
func (q *SampleAnnotationIndexQuery) SummaryOnly() bool {
	if q == nil {
		return true
	}
	qq := *q
	qq.Mask = 0
	return qq.IsEmpty()
}

// Test reports whether a passes every filter. A nil annotation only passes
// an empty query.
func (q *SampleAnnotationIndexQuery) Test(a *schema.AnnotationIndexEntry) bool {
	if q.IsEmpty() {
		return true
	}
	if a == nil || !q.TestSummary(a.Summary) {
		return false
	}
	if !a.Intergenic() {
		if !testCode(q.ConsequenceType, a.ConsequenceType) ||
			!testCode(q.Biotype, a.Biotype) ||
			!testCode(q.TranscriptFlag, a.TranscriptFlag) {
			return false
		}
		if q.CtBtTf != nil && !q.CtBtTf.IsNoOp() {
			if !a.HasCtBtTf() || !q.CtBtTf.Test(a.ConsequenceType, a.Biotype, a.TranscriptFlag, a.CtBtTf) {
				return false
			}
		}
	}
	if !q.testPopFreq(a.PopFreq) {
		return false
	}
	if !field.IsNoOp(q.ClinicalSource) || !field.IsNoOp(q.ClinicalSignificance) {
		if !a.HasClinical() ||
			!testCode(q.ClinicalSource, a.ClinicalSource) ||
			!testCode(q.ClinicalSignificance, a.ClinicalSignificance) {
			return false
		}
	}
	return true
}

func testCode(f field.Filter, code int) bool {
	return field.IsNoOp(f) || f.Test(code)
}

func (q *SampleAnnotationIndexQuery) testPopFreq(codes []int) bool {
	if len(q.PopulationFrequency) == 0 {
		return true
	}
	or := q.PopulationFrequencyOp == OpOr
	for _, p := range q.PopulationFrequency {
		code := 0
		if p.Index < len(codes) {
			code = codes[p.Index]
		}
		ok := p.Filter.Test(code)
		if or && ok {
			return true
		}
		if !or && !ok {
			return false
		}
	}
	return !or
}

// IsExact reports whether a passing annotation is guaranteed to match the
// values the filters were built from.
func (q *SampleAnnotationIndexQuery) IsExact() bool {
	if q == nil {
		return true
	}
	for _, p := range q.PopulationFrequency {
		if !p.Filter.IsExactFilter() {
			return false
		}
	}
	return field.IsExact(q.ConsequenceType) &&
		field.IsExact(q.Biotype) &&
		field.IsExact(q.TranscriptFlag) &&
		(q.CtBtTf == nil || q.CtBtTf.IsExactFilter()) &&
		field.IsExact(q.ClinicalSource) &&
		field.IsExact(q.ClinicalSignificance)
}

func (q *SampleAnnotationIndexQuery) String() string {
	if q.IsEmpty() {
		return "annotation{}"
	}
	var parts []string
	if q.Mask != 0 {
		parts = append(parts, fmt.Sprintf("summary&%08b==%08b", q.Mask, q.Value))
	}
	for _, f := range []field.Filter{q.ConsequenceType, q.Biotype, q.TranscriptFlag} {
		if !field.IsNoOp(f) {
			parts = append(parts, f.String())
		}
	}
	if q.CtBtTf != nil && !q.CtBtTf.IsNoOp() {
		parts = append(parts, q.CtBtTf.String())
	}
	if len(q.PopulationFrequency) > 0 {
		pf := make([]string, len(q.PopulationFrequency))
		for i, p := range q.PopulationFrequency {
			pf[i] = p.Filter.String()
		}
		parts = append(parts, strings.Join(pf, " "+string(q.PopulationFrequencyOp)+" "))
	}
	for _, f := range []field.Filter{q.ClinicalSource, q.ClinicalSignificance} {
		if !field.IsNoOp(f) {
			parts = append(parts, f.String())
		}
	}
	return "annotation{" + strings.Join(parts, ", ") + "}"
}
