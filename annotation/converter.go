package annotation

import (
	"slices"

	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/schema"
)

// Converter maps annotations to index entries of one schema.
type Converter struct {
	schema *schema.SampleIndexSchema
}

// NewConverter returns a converter for s.
func NewConverter(s *schema.SampleIndexSchema) *Converter {
	return &Converter{schema: s}
}

// Convert encodes a. A nil annotation is treated as intergenic with no
// frequencies.
func (c *Converter) Convert(a *Annotation) (*schema.AnnotationIndexEntry, error) {
	if a == nil {
		a = &Annotation{}
	}
	s := c.schema
	e := &schema.AnnotationIndexEntry{}

	freqs := make(map[string]float64, len(a.PopulationFrequencies))
	for _, pf := range a.PopulationFrequencies {
		freqs[pf.Key()] = pf.AltAlleleFreq
	}
	e.PopFreq = s.PopulationFrequency().Encode(freqs)
	if isRare(freqs) {
		e.Summary |= schema.PopFreqAny001Mask
	}

	if len(a.Clinical) > 0 {
		e.Summary |= schema.ClinicalMask
		sources := make([]string, 0, len(a.Clinical))
		sigs := make([]string, 0, len(a.Clinical))
		for _, cl := range a.Clinical {
			sources = append(sources, cl.Source)
			if cl.Significance != "" {
				sigs = append(sigs, cl.Significance)
			}
		}
		e.ClinicalSource = s.Clinical().Source().Encode(sources...)
		e.ClinicalSignificance = s.Clinical().Significance().Encode(sigs...)
	}

	intergenic := true
	for _, ct := range a.ConsequenceTypes {
		if ct.InGene() {
			intergenic = false
			break
		}
	}
	if intergenic {
		e.Summary |= schema.IntergenicMask
		return e, nil
	}

	ctField, btField, tfField := s.ConsequenceType(), s.Biotype(), s.TranscriptFlag()
	var combos []field.Combination
	for _, ct := range a.ConsequenceTypes {
		if !ct.InGene() {
			continue
		}
		proteinCoding := ct.Biotype == ProteinCoding
		if proteinCoding {
			e.Summary |= schema.ProteinCodingMask
		}
		if slices.Contains(ct.TranscriptFlags, BasicFlag) {
			e.Summary |= schema.TranscriptFlagBasicMask
		}
		for _, term := range ct.SequenceOntologyTerms {
			if slices.Contains(LoF, term) {
				e.Summary |= schema.LofMask
			}
			if slices.Contains(LoFExtended, term) {
				e.Summary |= schema.LofExtendedMask
				if proteinCoding {
					e.Summary |= schema.LofeProteinCodingMask
				}
			}
		}

		e.ConsequenceType |= ctField.Encode(ct.SequenceOntologyTerms...)
		e.TranscriptFlag |= tfField.Encode(ct.TranscriptFlags...)
		btBit, ok := btField.Bit(ct.Biotype)
		if !ok {
			continue
		}
		e.Biotype |= 1 << btBit
		combos = appendCombinations(combos, ctField, tfField, ct, btBit)
	}

	if e.HasCtBtTf() {
		m, err := s.CtBtTf().EncodeMatrix(e.ConsequenceType, e.Biotype, e.TranscriptFlag, combos)
		if err != nil {
			return nil, err
		}
		e.CtBtTf = m
	}
	return e, nil
}

func appendCombinations(combos []field.Combination, ctField, tfField *field.CategoricalMultiValuedField, ct ConsequenceType, btBit int) []field.Combination {
	var tfBits []int
	for _, flag := range ct.TranscriptFlags {
		if b, ok := tfField.Bit(flag); ok {
			tfBits = append(tfBits, b)
		}
	}
	for _, term := range ct.SequenceOntologyTerms {
		ctBit, ok := ctField.Bit(term)
		if !ok {
			continue
		}
		if len(tfBits) == 0 {
			combos = append(combos, field.Combination{X: ctBit, Y: btBit, Z: -1})
			continue
		}
		for _, tf := range tfBits {
			combos = append(combos, field.Combination{X: ctBit, Y: btBit, Z: tf})
		}
	}
	return combos
}

// isRare reports whether any summarized population stays below the 0.001
// threshold. A missing population counts as frequency 0.
func isRare(freqs map[string]float64) bool {
	for _, p := range PopFreqAny001Populations {
		if freqs[p] < schema.PopFreqAny001Threshold {
			return true
		}
	}
	return false
}
