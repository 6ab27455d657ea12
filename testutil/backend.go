package testutil

import (
	"context"
	"testing"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/store"
	"github.com/hupe1980/sampleidx/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBackendTests checks the store.Backend contract. newBackend must return
// an empty backend bound to schema.DefaultSchema().
func RunBackendTests(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Run("RowKey", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()
		assert.Equal(t, b.RowKey(1, "1", 0), b.RowKey(1, "1", 0))
		assert.NotEqual(t, b.RowKey(1, "1", 0), b.RowKey(1, "1", variant.BatchSize))
		assert.NotEqual(t, b.RowKey(1, "1", 0), b.RowKey(2, "1", 0))
		assert.NotEqual(t, b.RowKey(1, "1", 0), b.RowKey(1, "10", 0))
	})
	t.Run("ApplyScanDecode", func(t *testing.T) { testApplyScan(t, newBackend(t)) })
	t.Run("Chromosomes", func(t *testing.T) { testChromosomes(t, newBackend(t)) })
	t.Run("DeleteColumns", func(t *testing.T) { testDeleteColumns(t, newBackend(t)) })
	t.Run("StopScan", func(t *testing.T) { testStopScan(t, newBackend(t)) })
}

func writeRows(t *testing.T, b store.Backend, sampleID int, vs ...variant.Variant) []*entry.SampleIndexEntry {
	t.Helper()
	builder := Builder(t, schema.DefaultSchema(), sampleID, "0/1", vs...)
	ms, err := builder.Mutations()
	require.NoError(t, err)
	require.NoError(t, b.Apply(context.Background(), ms))
	entries, err := builder.BuildAll()
	require.NoError(t, err)
	return entries
}

func scanAll(t *testing.T, b store.Backend, r store.ScanRange) []*entry.SampleIndexEntry {
	t.Helper()
	var out []*entry.SampleIndexEntry
	for rec, err := range b.Scan(context.Background(), r) {
		require.NoError(t, err)
		e, err := b.Decode(rec)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func testApplyScan(t *testing.T, b store.Backend) {
	defer b.Close()
	vs := []variant.Variant{
		variant.MustParse("1:10:A:C"),
		variant.MustParse("1:1000010:G:T"),
		variant.MustParse("1:3000010:C:G"),
		variant.MustParse("10:20:T:A"),
	}
	written := writeRows(t, b, 3, vs...)
	writeRows(t, b, 4, variant.MustParse("1:1000020:A:T"))
	require.Len(t, written, 4)

	got := scanAll(t, b, store.FullRange(3, "1"))
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, 3, e.SampleID)
		assert.Equal(t, "1", e.Chromosome)
		assert.Equal(t, written[i].BatchStart, e.BatchStart)
		assert.Equal(t, schema.DefaultSchema().Version(), e.SchemaVersion)
		assert.Equal(t, written[i].Gts["0/1"].Variants, e.Gts["0/1"].Variants)
		assert.Equal(t, 1, e.Count())
	}

	got = scanAll(t, b, store.ScanRange{SampleID: 3, Chromosome: "1", FromBatch: variant.BatchSize, ToBatch: variant.BatchSize})
	require.Len(t, got, 1)
	assert.Equal(t, variant.BatchSize, got[0].BatchStart)

	assert.Empty(t, scanAll(t, b, store.FullRange(3, "2")))
	assert.Len(t, scanAll(t, b, store.FullRange(3, "10")), 1)
	assert.Len(t, scanAll(t, b, store.FullRange(4, "1")), 1)
}

func testChromosomes(t *testing.T, b store.Backend) {
	defer b.Close()
	writeRows(t, b, 1,
		variant.MustParse("2:10:A:C"),
		variant.MustParse("1:10:A:C"),
		variant.MustParse("1:2000010:A:C"),
		variant.MustParse("X:10:A:C"),
	)
	writeRows(t, b, 2, variant.MustParse("Y:10:A:C"))

	chroms, err := b.Chromosomes(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "X"}, chroms)

	chroms, err = b.Chromosomes(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, chroms)
}

func testDeleteColumns(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	writeRows(t, b, 1, variant.MustParse("1:10:A:C"))

	require.NoError(t, b.Apply(ctx, []entry.Mutation{{
		SampleID:   1,
		Chromosome: "1",
		BatchStart: 0,
		Delete:     []string{"0/1", entry.PrefixCount + "0/1", entry.PrefixFileIndex + "0/1"},
		Put:        entry.Columns{"1/1": variant.EncodeVariants([]variant.Variant{variant.MustParse("1:10:A:C")})},
	}}))

	var cols entry.Columns
	for rec, err := range b.Scan(ctx, store.FullRange(1, "1")) {
		require.NoError(t, err)
		e, err := b.Decode(rec)
		require.NoError(t, err)
		cols, err = entry.EncodeColumns(e)
		require.NoError(t, err)
	}
	require.NotNil(t, cols)
	assert.NotContains(t, cols, "0/1")
	assert.Contains(t, cols, "1/1")
}

func testStopScan(t *testing.T, b store.Backend) {
	defer b.Close()
	vs := NewRNG(7).SNVs("1", 10, 1, 10*variant.BatchSize)
	writeRows(t, b, 1, vs...)

	n := 0
	for _, err := range b.Scan(context.Background(), store.FullRange(1, "1")) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var gotErr error
	for _, err := range b.Scan(ctx, store.FullRange(1, "1")) {
		if err != nil {
			gotErr = err
			break
		}
	}
	require.ErrorIs(t, gotErr, context.Canceled)
}
