package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opValue struct {
	op    string
	value float64
}

func TestRangeLTExactFilter(t *testing.T) {
	f := NewRange(Configuration{Source: SourceFile, Key: "K", Kind: RangeLT, Thresholds: []float64{1, 2, 2, 3}})

	exact := []opValue{{"==", 2}, {">=", 1}, {">=", 2}, {">=", 3}, {"<", 3}, {"<", 2}, {"<", 1}, {"<=", 2}}
	for _, q := range exact {
		filter, err := f.BuildFilter(q.op, q.value)
		require.NoError(t, err)
		assert.True(t, filter.IsExactFilter(), "%s%g should be exact", q.op, q.value)
	}

	notExact := []opValue{{"==", 1}, {">=", 1.5}, {">=", 2.5}, {"<", 2.5}, {"<=", 1.5}, {"<=", 2.5}, {">", 0}, {">", 8}}
	for _, q := range notExact {
		filter, err := f.BuildFilter(q.op, q.value)
		require.NoError(t, err)
		assert.False(t, filter.IsExactFilter(), "%s%g should not be exact", q.op, q.value)
	}
}

func TestRangeGTExactFilter(t *testing.T) {
	f := NewRange(Configuration{Source: SourceFile, Key: "K", Kind: RangeGT, Thresholds: []float64{1, 2, 2, 3}})

	exact := []opValue{{"==", 2}, {"<=", 3}, {"<=", 2}, {"<=", 1}, {">", 1}, {">", 2}, {">", 3}, {">=", 2}}
	for _, q := range exact {
		filter, err := f.BuildFilter(q.op, q.value)
		require.NoError(t, err)
		assert.True(t, filter.IsExactFilter(), "%s%g should be exact", q.op, q.value)
	}

	notExact := []opValue{{"==", 3}, {"<=", 2.5}, {"<=", 1.5}, {">", 1.5}, {">=", 2.5}, {">=", 1.5}, {"<", 0}, {"<", -8}}
	for _, q := range notExact {
		filter, err := f.BuildFilter(q.op, q.value)
		require.NoError(t, err)
		assert.False(t, filter.IsExactFilter(), "%s%g should not be exact", q.op, q.value)
	}
}

func TestRangeCodes(t *testing.T) {
	lower, upper := 0.0, 100.0
	thresholds := []float64{1, 2, 3}
	f := NewRange(Configuration{Key: "K", Kind: RangeLT, Thresholds: thresholds, Min: &lower, Max: &upper})

	for i := 0; i <= len(thresholds); i++ {
		v := float64(i)

		gt, err := f.BuildFilter(">", v)
		require.NoError(t, err)
		assert.Equal(t, i, gt.MinCodeInclusive())
		assert.Equal(t, 4, gt.MaxCodeExclusive())
		assert.False(t, gt.IsExactFilter())

		ge, err := f.BuildFilter(">=", v)
		require.NoError(t, err)
		assert.Equal(t, i, ge.MinCodeInclusive())
		assert.Equal(t, 4, ge.MaxCodeExclusive())
		assert.True(t, ge.IsExactFilter())

		lt, err := f.BuildFilter("<", v)
		require.NoError(t, err)
		assert.Equal(t, 0, lt.MinCodeInclusive())
		assert.Equal(t, max(i, 1), lt.MaxCodeExclusive())
		assert.Equal(t, i != 0, lt.IsExactFilter())

		le, err := f.BuildFilter("<=", v)
		require.NoError(t, err)
		assert.Equal(t, i+1, le.MaxCodeExclusive())
		assert.False(t, le.IsExactFilter())
	}

	all, err := f.BuildFilter("<", 100)
	require.NoError(t, err)
	assert.True(t, all.IsExactFilter())
	assert.True(t, all.IsNoOp())

	half, err := f.BuildFilter("<", 50)
	require.NoError(t, err)
	assert.False(t, half.IsExactFilter())
}

func TestRangeEncode(t *testing.T) {
	f := NewRange(Configuration{Key: "K", Kind: RangeLT, Thresholds: []float64{1, 2, 2, 3}})
	assert.Equal(t, 0, f.Encode(0.5))
	assert.Equal(t, 1, f.Encode(1))
	assert.Equal(t, 1, f.Encode(1.9))
	assert.Equal(t, 2, f.Encode(2))
	assert.Equal(t, 3, f.Encode(2.5))
	assert.Equal(t, 4, f.Encode(3))
	assert.Equal(t, 3, f.BitLength())

	eq, err := f.BuildFilter("==", 2)
	require.NoError(t, err)
	assert.True(t, eq.Test(f.Encode(2)))
	assert.False(t, eq.Test(f.Encode(2.5)))
	assert.False(t, eq.Test(f.Encode(1.5)))
}

func TestRangeNullable(t *testing.T) {
	f := NewRange(Configuration{Source: SourceSample, Key: "DP", Kind: RangeLT, Thresholds: []float64{5, 10, 15, 20, 30, 50}, Nullable: true})
	assert.Equal(t, 0, f.EncodeNull())
	assert.Equal(t, 1, f.Encode(3))
	assert.Equal(t, 3, f.Encode(10))

	ge, err := f.BuildFilter(">=", 15)
	require.NoError(t, err)
	assert.True(t, ge.IsExactFilter())
	assert.False(t, ge.IsNoOp())
	assert.False(t, ge.Test(f.EncodeNull()))
	assert.True(t, ge.Test(f.Encode(16)))
	assert.False(t, ge.Test(f.Encode(14)))

	gt, err := f.BuildFilter(">", 34)
	require.NoError(t, err)
	assert.False(t, gt.IsExactFilter())
}

func TestRangeGTEncodeMirrors(t *testing.T) {
	f := NewRange(Configuration{Key: "K", Kind: RangeGT, Thresholds: []float64{1, 2, 3}})

	le, err := f.BuildFilter("<=", 2)
	require.NoError(t, err)
	assert.True(t, le.Test(f.Encode(2)))
	assert.True(t, le.Test(f.Encode(1.5)))
	assert.False(t, le.Test(f.Encode(2.5)))
}

func TestRangeInvalidOperator(t *testing.T) {
	f := NewRange(Configuration{Key: "K", Kind: RangeLT, Thresholds: []float64{1}})
	_, err := f.BuildFilter("~", 1)
	assert.ErrorIs(t, err, ErrInvalidOperator)
}
