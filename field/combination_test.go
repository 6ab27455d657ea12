package field

import (
	"testing"

	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCtBtTf() *CombinationField {
	ct := NewCategoricalMultiValued(Configuration{Key: "ct", Kind: CategoricalMultiValue, Values: []string{"missense_variant", "stop_gained", "intron_variant"}})
	bt := NewCategoricalMultiValued(Configuration{Key: "biotype", Kind: CategoricalMultiValue, Values: []string{"protein_coding", "miRNA"}})
	tf := NewCategoricalMultiValued(Configuration{Key: "tf", Kind: CategoricalMultiValue, Values: []string{"canonical", "basic"}})
	return NewCombination("ct_bt_tf", ct, bt, tf)
}

func TestCombinationRoundTrip(t *testing.T) {
	f := newCtBtTf()

	// missense in a protein coding canonical transcript,
	// intron in a miRNA transcript without flags.
	combos := []Combination{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 1, Z: -1}}
	x, y, z, matrix, err := f.Encode(combos)
	require.NoError(t, err)
	assert.Equal(t, 0b101, x)
	assert.Equal(t, 0b11, y)
	assert.Equal(t, 0b01, z)
	assert.Equal(t, 2*2*2, matrix.BitLength())

	out := bitio.NewBitOutputStream(0)
	require.NoError(t, f.Write(matrix, out))
	read, err := f.Read(bitio.NewBitInputStream(out.Bytes()), x, y, z)
	require.NoError(t, err)
	assert.True(t, read.Equal(matrix))

	ct, bt, tf := f.X(), f.Y(), f.Z()

	missenseCoding := f.BuildFilter(ct.BuildFilter("missense_variant"), bt.BuildFilter("protein_coding"), nil)
	assert.True(t, missenseCoding.Test(x, y, z, read))
	assert.True(t, missenseCoding.IsExactFilter())

	// Both values exist in the entry, but never in the same transcript.
	missenseMiRNA := f.BuildFilter(ct.BuildFilter("missense_variant"), bt.BuildFilter("miRNA"), nil)
	assert.False(t, missenseMiRNA.Test(x, y, z, read))

	intronCanonical := f.BuildFilter(ct.BuildFilter("intron_variant"), nil, tf.BuildFilter("canonical"))
	assert.False(t, intronCanonical.Test(x, y, z, read))

	missenseCanonical := f.BuildFilter(ct.BuildFilter("missense_variant"), nil, tf.BuildFilter("canonical"))
	assert.True(t, missenseCanonical.Test(x, y, z, read))

	intronAny := f.BuildFilter(ct.BuildFilter("intron_variant"), nil, nil)
	assert.True(t, intronAny.Test(x, y, z, read))
	assert.False(t, intronAny.IsNoOp())

	noop := f.BuildFilter(nil, nil, nil)
	assert.True(t, noop.IsNoOp())
}

func TestCombinationPair(t *testing.T) {
	ct := NewCategoricalMultiValued(Configuration{Key: "ct", Kind: CategoricalMultiValue, Values: []string{"a", "b"}})
	bt := NewCategoricalMultiValued(Configuration{Key: "bt", Kind: CategoricalMultiValue, Values: []string{"x", "y"}})
	f := NewCombination("ct_bt", ct, bt, nil)

	x, y, z, matrix, err := f.Encode([]Combination{{X: 0, Y: 1}, {X: 1, Y: 0}})
	require.NoError(t, err)
	assert.Equal(t, 0, z)
	assert.Equal(t, 4, matrix.BitLength())

	assert.True(t, f.BuildFilter(ct.BuildFilter("a"), bt.BuildFilter("y"), nil).Test(x, y, z, matrix))
	assert.False(t, f.BuildFilter(ct.BuildFilter("a"), bt.BuildFilter("x"), nil).Test(x, y, z, matrix))
}
