package annotation

import (
	"testing"

	"github.com/hupe1980/sampleidx/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertGenic(t *testing.T) {
	s := schema.DefaultSchema()
	c := NewConverter(s)

	e, err := c.Convert(&Annotation{
		ConsequenceTypes: []ConsequenceType{
			{GeneID: "G1", Biotype: "protein_coding", TranscriptFlags: []string{"basic"}, SequenceOntologyTerms: []string{"missense_variant"}},
			{GeneID: "G2", Biotype: "lncRNA", SequenceOntologyTerms: []string{"intron_variant"}},
		},
		PopulationFrequencies: []PopulationFrequency{{Study: "GNOMAD_GENOMES", Population: "ALL", AltAlleleFreq: 0.0005}},
		Clinical:              []Clinical{{Source: "clinvar", Significance: "pathogenic"}},
	})
	require.NoError(t, err)

	want := schema.PopFreqAny001Mask | schema.ClinicalMask | schema.ProteinCodingMask |
		schema.TranscriptFlagBasicMask | schema.LofExtendedMask | schema.LofeProteinCodingMask
	assert.Equal(t, want, e.Summary)
	assert.False(t, e.Intergenic())
	assert.Equal(t, 1<<0|1<<23, e.ConsequenceType)
	assert.Equal(t, 1<<7|1<<1, e.Biotype)
	assert.Equal(t, 1, e.TranscriptFlag)
	assert.Equal(t, []int{0, 3}, e.PopFreq)
	assert.Equal(t, 1, e.ClinicalSource)
	assert.Equal(t, 1<<4, e.ClinicalSignificance)
	require.True(t, e.HasCtBtTf())

	combo := s.CtBtTf()
	ct, bt, tf := s.ConsequenceType(), s.Biotype(), s.TranscriptFlag()
	test := func(cts, bts, tfs []string) bool {
		fz := tf.BuildFilter(tfs...)
		return combo.BuildFilter(ct.BuildFilter(cts...), bt.BuildFilter(bts...), fz).
			Test(e.ConsequenceType, e.Biotype, e.TranscriptFlag, e.CtBtTf)
	}
	assert.True(t, test([]string{"missense_variant"}, []string{"protein_coding"}, nil))
	assert.True(t, test([]string{"missense_variant"}, []string{"protein_coding"}, []string{"basic"}))
	assert.True(t, test([]string{"intron_variant"}, []string{"lincRNA"}, nil))
	assert.False(t, test([]string{"missense_variant"}, []string{"lincRNA"}, nil))
	assert.False(t, test([]string{"intron_variant"}, []string{"lincRNA"}, []string{"basic"}))
}

func TestConvertIntergenic(t *testing.T) {
	c := NewConverter(schema.DefaultSchema())

	e, err := c.Convert(&Annotation{
		ConsequenceTypes: []ConsequenceType{{SequenceOntologyTerms: []string{IntergenicVariant}}},
	})
	require.NoError(t, err)
	assert.Equal(t, schema.IntergenicMask|schema.PopFreqAny001Mask, e.Summary)
	assert.Zero(t, e.ConsequenceType)
	assert.Nil(t, e.CtBtTf)
	assert.False(t, e.HasCtBtTf())
}

func TestConvertCommonVariant(t *testing.T) {
	c := NewConverter(schema.DefaultSchema())

	e, err := c.Convert(&Annotation{
		ConsequenceTypes: []ConsequenceType{
			{GeneID: "G1", Biotype: "protein_coding", SequenceOntologyTerms: []string{"stop_gained"}},
		},
		PopulationFrequencies: []PopulationFrequency{
			{Study: "1kG_phase3", Population: "ALL", AltAlleleFreq: 0.2},
			{Study: "GNOMAD_GENOMES", Population: "ALL", AltAlleleFreq: 0.3},
		},
	})
	require.NoError(t, err)
	assert.Zero(t, e.Summary&schema.PopFreqAny001Mask)
	assert.NotZero(t, e.Summary&schema.LofMask)
	assert.Equal(t, []int{7, 7}, e.PopFreq)
}

func TestConvertNil(t *testing.T) {
	e, err := NewConverter(schema.DefaultSchema()).Convert(nil)
	require.NoError(t, err)
	assert.True(t, e.Intergenic())
}
