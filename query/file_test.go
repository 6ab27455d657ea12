package query

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleFileIndexQuery(t *testing.T) {
	fi := schema.DefaultSchema().FileIndex()

	encode := func(pos int, vt variant.Type, filter, qual string) *bitio.BitBuffer {
		buf, err := fi.EncodeAttributes(pos, vt, map[string]string{"FILE:FILTER": filter, "FILE:QUAL": qual})
		require.NoError(t, err)
		return buf
	}
	pass := encode(0, variant.SNV, "PASS", "45")
	lowQual := encode(1, variant.INDEL, "LowQual", "5")

	f, fidx, ok := fi.CustomField(field.SourceFile, "FILTER")
	require.True(t, ok)
	q, qidx, ok := fi.CustomField(field.SourceFile, "QUAL")
	require.True(t, ok)
	passFilter := f.(*field.CategoricalField).BuildFilter("PASS")
	qualFilter, err := q.(*field.RangeField).BuildFilter(">=", 20)
	require.NoError(t, err)

	var empty *SampleFileIndexQuery
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.IsExact())

	tests := []struct {
		name    string
		query   *SampleFileIndexQuery
		entries []*bitio.BitBuffer
		want    bool
	}{
		{
			name:    "no filter",
			query:   &SampleFileIndexQuery{},
			entries: []*bitio.BitBuffer{lowQual},
			want:    true,
		},
		{
			name:    "any entry passes",
			query:   &SampleFileIndexQuery{Filters: []FileFieldFilter{{Index: fidx, Filter: passFilter}}},
			entries: []*bitio.BitBuffer{lowQual, pass},
			want:    true,
		},
		{
			name:    "no entry passes",
			query:   &SampleFileIndexQuery{Filters: []FileFieldFilter{{Index: qidx, Filter: qualFilter}}},
			entries: []*bitio.BitBuffer{lowQual},
			want:    false,
		},
		{
			name:    "variant type",
			query:   &SampleFileIndexQuery{VariantType: fi.VariantTypeField().BuildFilter(string(variant.INDEL))},
			entries: []*bitio.BitBuffer{pass, lowQual},
			want:    true,
		},
		{
			name:    "file position",
			query:   &SampleFileIndexQuery{FilePositions: bitset.New(8).Set(1)},
			entries: []*bitio.BitBuffer{pass},
			want:    false,
		},
		{
			name: "all filters on one entry",
			query: &SampleFileIndexQuery{
				FilePositions: bitset.New(8).Set(0).Set(1),
				VariantType:   fi.VariantTypeField().BuildFilter(string(variant.INDEL)),
				Filters:       []FileFieldFilter{{Index: fidx, Filter: passFilter}},
			},
			entries: []*bitio.BitBuffer{pass, lowQual},
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query.Test(fi, tt.entries)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSingleSampleTestFileIndex(t *testing.T) {
	s := schema.DefaultSchema()
	fi := s.FileIndex()
	first, err := fi.EncodeAttributes(0, variant.SNV, nil)
	require.NoError(t, err)

	at := func(pos int) *SampleFileIndexQuery {
		return &SampleFileIndexQuery{FilePositions: bitset.New(8).Set(uint(pos))}
	}

	q := &SingleSampleIndexQuery{Schema: s, FileQueries: []*SampleFileIndexQuery{at(0), at(1)}, FileOp: OpAnd}
	assert.True(t, q.HasFileFilter())
	ok, err := q.TestFileIndex([]*bitio.BitBuffer{first})
	require.NoError(t, err)
	assert.False(t, ok)

	q.FileOp = OpOr
	ok, err = q.TestFileIndex([]*bitio.BitBuffer{first})
	require.NoError(t, err)
	assert.True(t, ok)

	q.FileQueries = nil
	assert.False(t, q.HasFileFilter())
	ok, err = q.TestFileIndex([]*bitio.BitBuffer{first})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParentFilter(t *testing.T) {
	s := schema.DefaultSchema()
	codec := s.Genotype()

	f := NewParentFilter(codec, "0/1", "1|1")
	assert.True(t, f.IsExact(codec))
	assert.False(t, NewParentFilter(codec, "0/1", "1/3/4").IsExact(codec))

	q := &SingleSampleIndexQuery{Schema: s, FatherFilter: &f}
	assert.True(t, q.HasParentsFilter())
	assert.True(t, q.TestParents(codec.EncodeParents("1/1", "0/0"), true))
	assert.False(t, q.TestParents(codec.EncodeParents("0/0", "0/0"), true))
	assert.False(t, q.TestParents(0, false))

	q.FatherFilter = nil
	assert.True(t, q.TestParents(0, false))
}
