package query

import (
	"maps"
	"slices"
	"strings"
)

// Param names a VariantQuery parameter.
type Param string

// Supported parameters. Lists use "," for OR and ";" for AND unless stated.
const (
	ParamStudy  Param = "study"
	ParamRegion Param = "region"
	// ParamID holds variant ids "chr:pos:ref:alt".
	ParamID   Param = "id"
	ParamGene Param = "gene"
	// ParamGenotype holds "sample:gt,gt;sample:gt".
	ParamGenotype       Param = "genotype"
	ParamSample         Param = "sample"
	ParamMendelianError Param = "mendelianError"
	// ParamSampleData holds "sample:KEY<op>value;..." filters of sample fields.
	ParamSampleData Param = "sampleData"
	// ParamFile restricts to the files of a sample.
	ParamFile Param = "file"
	// ParamFileData holds "KEY<op>value;..." filters of custom file fields.
	ParamFileData             Param = "fileData"
	ParamFilter               Param = "filter"
	ParamQual                 Param = "qual"
	ParamType                 Param = "type"
	ParamConsequenceType      Param = "ct"
	ParamBiotype              Param = "biotype"
	ParamTranscriptFlag       Param = "transcriptFlag"
	ParamPopulationFreq       Param = "populationFrequencyAlt"
	ParamClinicalSource       Param = "clinicalSource"
	ParamClinicalSignificance Param = "clinicalSignificance"
	// ParamProteinSubstitution is not answered by the index but implies a
	// protein coding consequence.
	ParamProteinSubstitution Param = "proteinSubstitution"
)

// VariantQuery is a set of textual filter parameters.
type VariantQuery map[Param]string

// Get returns a parameter.
func (q VariantQuery) Get(p Param) string { return q[p] }

// Has reports whether a non empty parameter is set.
func (q VariantQuery) Has(p Param) bool { return strings.TrimSpace(q[p]) != "" }

// Remove deletes parameters.
func (q VariantQuery) Remove(ps ...Param) {
	for _, p := range ps {
		delete(q, p)
	}
}

// Clone returns a copy.
func (q VariantQuery) Clone() VariantQuery { return maps.Clone(q) }

// Params returns the set parameters, sorted.
func (q VariantQuery) Params() []Param {
	out := make([]Param, 0, len(q))
	for p := range q {
		if q.Has(p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// List splits a parameter and reports its operation. Mixing "," and ";"
// yields ok=false.
func (q VariantQuery) List(p Param) (values []string, op Operation, ok bool) {
	return splitValue(q[p])
}

func splitValue(raw string) ([]string, Operation, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, OpOr, true
	}
	hasAnd, hasOr := strings.Contains(raw, ";"), strings.Contains(raw, ",")
	if hasAnd && hasOr {
		return nil, "", false
	}
	sep, op := ",", OpOr
	if hasAnd {
		sep, op = ";", OpAnd
	}
	parts := strings.Split(raw, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, op, true
}

// splitOperator splits "KEY<=value" into key, operator and value. A missing
// key returns an empty key.
func splitOperator(expr string) (key, op, value string, ok bool) {
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '<', '>', '=', '!':
			j := i + 1
			for j < len(expr) && strings.ContainsRune("<>=", rune(expr[j])) {
				j++
			}
			op = expr[i:j]
			switch op {
			case "<", "<=", ">", ">=", "=", "==", "<<", ">>", "!=":
			default:
				return "", "", "", false
			}
			return strings.TrimSpace(expr[:i]), op, strings.TrimSpace(expr[j:]), true
		}
	}
	return "", "", "", false
}
