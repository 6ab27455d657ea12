package entry

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/hupe1980/sampleidx/annotation"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	missense = &annotation.Annotation{
		ConsequenceTypes: []annotation.ConsequenceType{
			{GeneID: "BRCA2", Biotype: "protein_coding", TranscriptFlags: []string{"basic"}, SequenceOntologyTerms: []string{"missense_variant"}},
		},
		PopulationFrequencies: []annotation.PopulationFrequency{{Study: "GNOMAD_GENOMES", Population: "ALL", AltAlleleFreq: 0.02}},
	}
	intergenic = &annotation.Annotation{
		ConsequenceTypes: []annotation.ConsequenceType{{SequenceOntologyTerms: []string{annotation.IntergenicVariant}}},
		Clinical:         []annotation.Clinical{{Source: "clinvar", Significance: "benign"}},
	}
)

func newVariant(t *testing.T, s *schema.SampleIndexSchema, v string, a *annotation.Annotation, filePosition int) SampleIndexVariant {
	t.Helper()
	vv := variant.MustParse(v)
	fi, err := s.FileIndex().EncodeAttributes(filePosition, vv.Type(), map[string]string{
		"FILE:FILTER": "PASS",
		"FILE:QUAL":   "40",
		"SAMPLE:DP":   "12",
	})
	require.NoError(t, err)
	out := SampleIndexVariant{Variant: vv, FileIndex: []*bitio.BitBuffer{fi}}
	if a != nil {
		out.Annotation, err = annotation.NewConverter(s).Convert(a)
		require.NoError(t, err)
	}
	return out
}

func decodeAll(t *testing.T, s *schema.SampleIndexSchema, e *SampleIndexEntry, gt string) []SampleIndexVariant {
	t.Helper()
	c, err := NewCursor(s, e, gt)
	require.NoError(t, err)
	var out []SampleIndexVariant
	for c.Next() {
		v, err := c.SampleIndexVariant()
		require.NoError(t, err)
		out = append(out, v)
	}
	require.NoError(t, c.Err())
	return out
}

func roundTrip(t *testing.T, e *SampleIndexEntry) *SampleIndexEntry {
	t.Helper()
	cols, err := EncodeColumns(e)
	require.NoError(t, err)
	got, err := DecodeColumns(e.SampleID, e.Chromosome, e.BatchStart, cols)
	require.NoError(t, err)
	return got
}

func TestBuildAndDecode(t *testing.T) {
	s := schema.DefaultSchema()
	b := NewBuilder(s, 7)

	v2 := newVariant(t, s, "1:1000200:AT:-", intergenic, 1)
	v1 := newVariant(t, s, "1:1000100:A:C", missense, 0)
	v3 := newVariant(t, s, "1:1000150:G:T", missense, 0)
	require.NoError(t, b.Add("0/1", v2))
	require.NoError(t, b.Add("0/1", v1))
	require.NoError(t, b.Add("1/1", v3))

	e, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 7, e.SampleID)
	assert.Equal(t, "1", e.Chromosome)
	assert.Equal(t, 1_000_000, e.BatchStart)
	assert.Equal(t, []string{"0/1", "1/1"}, e.Genotypes())
	assert.Equal(t, 3, e.Count())
	assert.Equal(t, 2, e.Count("0/1"))

	e = roundTrip(t, e)

	got := decodeAll(t, s, e, "0/1")
	require.Len(t, got, 2)
	assert.Equal(t, v1.Variant, got[0].Variant)
	assert.Equal(t, v2.Variant, got[1].Variant)
	assert.True(t, v1.Annotation.Equal(got[0].Annotation), "%s != %s", v1.Annotation, got[0].Annotation)
	assert.True(t, v2.Annotation.Equal(got[1].Annotation), "%s != %s", v2.Annotation, got[1].Annotation)
	assert.Equal(t, "0/1", got[0].Genotype)

	fi, err := s.FileIndex().Decode(got[1].FileIndex[0])
	require.NoError(t, err)
	assert.Equal(t, 1, fi.FilePosition)
	assert.Equal(t, variant.Deletion, fi.VariantType)

	got = decodeAll(t, s, e, "1/1")
	require.Len(t, got, 1)
	assert.Equal(t, v3.Variant, got[0].Variant)

	assert.Empty(t, decodeAll(t, s, e, "0/0"))
}

func TestAnnotationCounts(t *testing.T) {
	s := schema.DefaultSchema()
	b := NewBuilder(s, 1)
	require.NoError(t, b.Add("0/1", newVariant(t, s, "2:10:A:C", missense, 0)))
	require.NoError(t, b.Add("0/1", newVariant(t, s, "2:20:A:C", missense, 0)))
	require.NoError(t, b.Add("0/1", newVariant(t, s, "2:30:A:C", intergenic, 0)))
	e, err := b.Build()
	require.NoError(t, err)

	g := roundTrip(t, e).Gts["0/1"]
	n, ok := g.AnnotationCount(schema.LofExtendedMask)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	n, ok = g.AnnotationCount(schema.ClinicalMask)
	require.True(t, ok)
	assert.Equal(t, 1, n)
	_, ok = g.AnnotationCount(schema.ClinicalMask | schema.LofMask)
	assert.False(t, ok)
}

func TestMultiFileVariant(t *testing.T) {
	s := schema.DefaultSchema()
	b := NewBuilder(s, 1)

	first := newVariant(t, s, "3:500:C:G", nil, 0)
	first.FileData = [][]byte{[]byte("file-0")}
	second := newVariant(t, s, "3:500:C:G", nil, 2)
	second.FileData = [][]byte{[]byte("file-2")}
	require.NoError(t, b.Add("0/1", first))
	require.NoError(t, b.Add("0/1", second))
	require.NoError(t, b.Add("0/1", newVariant(t, s, "3:600:C:G", nil, 1)))

	e, err := b.Build()
	require.NoError(t, err)
	got := decodeAll(t, s, roundTrip(t, e), "0/1")
	require.Len(t, got, 2)
	require.Len(t, got[0].FileIndex, 2)
	assert.Equal(t, [][]byte{[]byte("file-0"), []byte("file-2")}, got[0].FileData)
	assert.Equal(t, [][]byte{{}}, got[1].FileData)
	assert.Nil(t, got[0].Annotation)

	positions := make([]int, 0, 2)
	for _, buf := range got[0].FileIndex {
		fi, err := s.FileIndex().Decode(buf)
		require.NoError(t, err)
		positions = append(positions, fi.FilePosition)
	}
	assert.Equal(t, []int{0, 2}, positions)
}

func TestDiscrepancies(t *testing.T) {
	s := schema.DefaultSchema()
	b := NewBuilder(s, 1)
	require.NoError(t, b.Add("0/1", newVariant(t, s, "4:100:A:T", nil, 0)))
	require.NoError(t, b.Add("1/1", newVariant(t, s, "4:100:A:T", nil, 1)))
	require.NoError(t, b.Add("1/1", newVariant(t, s, "4:200:A:T", nil, 1)))

	e, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 1, e.Discrepancies)
	assert.Equal(t, 1, roundTrip(t, e).Discrepancies)
}

func TestPartiallyAnnotatedGenotype(t *testing.T) {
	s := schema.DefaultSchema()
	var buf bytes.Buffer
	b := NewBuilder(s, 1, WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	require.NoError(t, b.Add("0/1", newVariant(t, s, "4:100:A:T", missense, 0)))
	require.NoError(t, b.Add("0/1", newVariant(t, s, "4:200:A:T", nil, 0)))
	require.NoError(t, b.Add("1/1", newVariant(t, s, "4:300:A:T", missense, 0)))

	e, err := b.Build()
	require.NoError(t, err)
	assert.False(t, e.Gts["0/1"].Annotated())
	assert.True(t, e.Gts["1/1"].Annotated())
	assert.Contains(t, buf.String(), "dropping annotation columns")
	assert.Contains(t, buf.String(), "genotype=0/1")
	assert.Contains(t, buf.String(), "unannotated=1")
	assert.NotContains(t, buf.String(), "genotype=1/1")
}

func TestParentsAndMendelianErrors(t *testing.T) {
	s := schema.DefaultSchema()
	b := NewBuilder(s, 1)
	codec := s.Genotype()

	v1 := newVariant(t, s, "5:100:A:T", nil, 0)
	v1.Parents, v1.HasParents = codec.EncodeParents("0/0", "0/0"), true
	v1.MendelianError = true
	v2 := newVariant(t, s, "5:200:A:T", nil, 0)
	v2.Parents, v2.HasParents = codec.EncodeParents("0/1", "0/0"), true
	require.NoError(t, b.Add("0/1", v1))
	require.NoError(t, b.Add("0/1", v2))

	e, err := b.Build()
	require.NoError(t, err)
	got := decodeAll(t, s, roundTrip(t, e), "0/1")
	require.Len(t, got, 2)
	assert.True(t, got[0].MendelianError)
	assert.False(t, got[1].MendelianError)
	father, mother := codec.SplitParents(got[1].Parents)
	assert.Equal(t, schema.GenotypeHet, father)
	assert.Equal(t, schema.GenotypeHomRef, mother)
}

func TestBuilderStates(t *testing.T) {
	s := schema.DefaultSchema()

	t.Run("empty", func(t *testing.T) {
		_, err := NewBuilder(s, 1).Build()
		require.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("built", func(t *testing.T) {
		b := NewBuilder(s, 1)
		require.NoError(t, b.Add("0/1", newVariant(t, s, "1:10:A:C", nil, 0)))
		_, err := b.Build()
		require.NoError(t, err)
		require.ErrorIs(t, b.Add("0/1", newVariant(t, s, "1:20:A:C", nil, 0)), ErrBuilt)
	})

	t.Run("ordered input", func(t *testing.T) {
		b := NewBuilder(s, 1, WithOrderedInput())
		require.NoError(t, b.Add("0/1", newVariant(t, s, "1:20:A:C", nil, 0)))
		require.ErrorIs(t, b.Add("0/1", newVariant(t, s, "1:10:A:C", nil, 0)), ErrUnorderedInput)
	})

	t.Run("not indexable", func(t *testing.T) {
		b := NewBuilder(s, 1)
		require.NoError(t, b.Add("0/0", newVariant(t, s, "1:10:A:C", nil, 0)))
		require.NoError(t, b.Add("./.", newVariant(t, s, "1:10:A:C", nil, 0)))
		assert.Equal(t, 2, b.Skipped())
		_, err := b.Build()
		require.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("missing file index", func(t *testing.T) {
		b := NewBuilder(s, 1)
		require.NoError(t, b.Add("0/1", SampleIndexVariant{Variant: variant.MustParse("1:10:A:C")}))
		_, err := b.Build()
		require.ErrorIs(t, err, ErrMissingFileIndex)
	})

	t.Run("multiple batches", func(t *testing.T) {
		b := NewBuilder(s, 1)
		require.NoError(t, b.Add("0/1", newVariant(t, s, "2:10:A:C", nil, 0)))
		require.NoError(t, b.Add("0/1", newVariant(t, s, "1:2000010:A:C", nil, 0)))
		require.NoError(t, b.Add("0/1", newVariant(t, s, "1:10:A:C", nil, 0)))
		_, err := b.Build()
		require.ErrorIs(t, err, ErrMultipleBatches)

		all, err := b.BuildAll()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "1:0-999999", all[0].Region().String())
		assert.Equal(t, 2_000_000, all[1].BatchStart)
		assert.Equal(t, "2", all[2].Chromosome)
	})
}

func TestMergeEmitsStaleColumns(t *testing.T) {
	s := schema.DefaultSchema()

	old := NewBuilder(s, 9)
	v1 := newVariant(t, s, "1:100:A:C", missense, 0)
	v1.Parents, v1.HasParents = s.Genotype().EncodeParents("0/1", "0/0"), true
	require.NoError(t, old.Add("0/1", v1))
	require.NoError(t, old.Add("1/1", newVariant(t, s, "1:300:A:C", missense, 0)))
	existing, err := old.Build()
	require.NoError(t, err)
	existing = roundTrip(t, existing)

	b := NewBuilder(s, 9)
	require.NoError(t, b.Merge(existing))
	assert.Equal(t, []string{"0/1", "1/1"}, b.Merging("1", 0))
	require.NoError(t, b.Add("0/1", newVariant(t, s, "1:200:A:G", nil, 1)))

	muts, err := b.Mutations()
	require.NoError(t, err)
	require.Len(t, muts, 1)
	m := muts[0]
	assert.Equal(t, 9, m.SampleID)
	assert.Contains(t, m.Delete, PrefixAnnotation+"0/1")
	assert.Contains(t, m.Delete, PrefixConsequenceType+"0/1")
	assert.Contains(t, m.Delete, PrefixPopulationFrequency+"0/1")
	assert.NotContains(t, m.Delete, PrefixAnnotation+"1/1")
	assert.NotContains(t, m.Delete, PrefixParents+"0/1")
	for _, name := range m.Delete {
		assert.NotContains(t, m.Put, name)
	}

	merged, err := DecodeColumns(9, "1", 0, m.Put)
	require.NoError(t, err)
	got := decodeAll(t, s, merged, "0/1")
	require.Len(t, got, 2)
	assert.Equal(t, "1:100:A:C", got[0].Variant.String())
	assert.Equal(t, "1:200:A:G", got[1].Variant.String())
	assert.True(t, got[0].HasParents)
}

func TestMergeRejectsOtherSampleAndVersion(t *testing.T) {
	s := schema.DefaultSchema()
	e := NewSampleIndexEntry(2, "1", 0, 1)
	require.Error(t, NewBuilder(s, 1).Merge(e))

	e = NewSampleIndexEntry(1, "1", 0, 5)
	require.ErrorIs(t, NewBuilder(s, 1).Merge(e), schema.ErrVersionMismatch)
}

func TestCursorVersionMismatch(t *testing.T) {
	s := schema.DefaultSchema()
	_, err := NewCursor(s, NewSampleIndexEntry(1, "1", 0, 2), "0/1")
	require.ErrorIs(t, err, schema.ErrVersionMismatch)
}

func TestSplitColumn(t *testing.T) {
	for name, want := range map[string][2]string{
		"0/1":       {"", "0/1"},
		"_A_0/1":    {PrefixAnnotation, "0/1"},
		"_AC_1/1":   {PrefixAnnotationCounts, "1/1"},
		"_CBT_0|1":  {PrefixCtBtTf, "0|1"},
		"_FD_MIXED": {PrefixFileData, "MIXED"},
	} {
		prefix, gt, ok := SplitColumn(name)
		require.True(t, ok, name)
		assert.Equal(t, want[0], prefix, name)
		assert.Equal(t, want[1], gt, name)
	}
	_, _, ok := SplitColumn(ColumnSchemaVersion)
	assert.False(t, ok)
}

func TestDecodeColumnsCorrupted(t *testing.T) {
	_, err := DecodeColumns(1, "1", 0, Columns{PrefixCount + "0/1": {0x01}})
	require.ErrorIs(t, err, ErrCorrupted)

	_, err = DecodeColumns(1, "1", 0, Columns{ColumnSchemaVersion: {}})
	require.ErrorIs(t, err, ErrCorrupted)
}
