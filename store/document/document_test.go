package document

import (
	"context"
	"testing"

	"github.com/hupe1980/sampleidx/blobstore"
	"github.com/hupe1980/sampleidx/codec"
	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/store"
	"github.com/hupe1980/sampleidx/testutil"
	"github.com/hupe1980/sampleidx/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend(t *testing.T) {
	version := schema.DefaultSchema().Version()
	t.Run("Memory", func(t *testing.T) {
		testutil.RunBackendTests(t, func(*testing.T) store.Backend {
			return New(blobstore.NewMemoryStore(), "study", version)
		})
	})
	t.Run("LocalZSTD", func(t *testing.T) {
		testutil.RunBackendTests(t, func(t *testing.T) store.Backend {
			return New(blobstore.NewLocalStore(t.TempDir()), "study", version,
				WithCompression(blobstore.CompressionZSTD), WithCodec(codec.JSON{}))
		})
	})
	t.Run("NoCache", func(t *testing.T) {
		testutil.RunBackendTests(t, func(*testing.T) store.Backend {
			return New(blobstore.NewMemoryStore(), "study", version,
				WithCacheSize(0), WithCompression(blobstore.CompressionLZ4), WithConcurrency(1))
		})
	})
}

func TestPaths(t *testing.T) {
	b := New(blobstore.NewMemoryStore(), "study", 2)
	assert.Equal(t, "study_2/7/1_3000000.json", string(b.RowKey(7, "1", 3_000_000)))
	assert.Equal(t, "study_2/7/chrUn%2Fx_0.json", string(b.RowKey(7, "chrUn/x", 0)))

	chrom, batch, ok := parseName("chrUn%2Fx_0.json")
	require.True(t, ok)
	assert.Equal(t, "chrUn/x", chrom)
	assert.Equal(t, 0, batch)

	chrom, _, ok = parseName("HLA_1_1000000.json")
	require.True(t, ok)
	assert.Equal(t, "HLA_1", chrom)

	for _, name := range []string{"1_0.bin", "1.json", "1_x.json", "1_-5.json"} {
		_, _, ok := parseName(name)
		assert.False(t, ok, name)
	}
}

func TestChromosomeWithSharedPrefix(t *testing.T) {
	ctx := context.Background()
	s := schema.DefaultSchema()
	b := New(blobstore.NewMemoryStore(), "study", s.Version())
	db := store.New(b, s)

	require.NoError(t, db.Write(ctx, testutil.Builder(t, s, 1, "0/1",
		variant.MustParse("HLA:10:A:C"),
		variant.MustParse("HLA_1:20:A:C"),
	)))

	chroms, err := b.Chromosomes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"HLA", "HLA_1"}, chroms)

	n := 0
	for _, err := range b.Scan(ctx, store.FullRange(1, "HLA")) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)
}

func TestChecksum(t *testing.T) {
	ctx := context.Background()
	s := schema.DefaultSchema()
	blobs := blobstore.NewMemoryStore()
	b := New(blobs, "study", s.Version(), WithCacheSize(0))
	ms, err := testutil.Builder(t, s, 1, "0/1", variant.MustParse("1:10:A:C")).Mutations()
	require.NoError(t, err)
	require.NoError(t, b.Apply(ctx, ms))

	path := string(b.RowKey(1, "1", 0))
	data, err := blobs.Get(ctx, path)
	require.NoError(t, err)
	data[len(data)-2] ^= 0xff
	require.NoError(t, blobs.Put(ctx, path, data))

	for rec, err := range b.Scan(ctx, store.FullRange(1, "1")) {
		require.NoError(t, err)
		_, err = b.Decode(rec)
		require.ErrorIs(t, err, ErrChecksum)
		require.ErrorIs(t, err, entry.ErrCorrupted)
	}
}

func TestDocumentFormat(t *testing.T) {
	doc := &Document{SampleID: 1, Chromosome: "1", BatchStart: 0, Columns: map[string][]byte{"0/1": {1, 2}}}
	blob, err := encodeDocument(codec.JSON{}, doc)
	require.NoError(t, err)
	assert.Equal(t, byte(formatVersion), blob[0])
	assert.Equal(t, "json", string(blob[2:2+blob[1]]))

	got, err := decodeDocument(blob)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = decodeDocument(blob[:5])
	require.ErrorIs(t, err, entry.ErrCorrupted)

	blob[0] = 9
	_, err = decodeDocument(blob)
	require.ErrorIs(t, err, entry.ErrCorrupted)
}

func TestDecodeRejectsMovedDocument(t *testing.T) {
	b := New(blobstore.NewMemoryStore(), "study", 1)
	blob, err := encodeDocument(codec.Default, &Document{SampleID: 2, Chromosome: "1", Columns: map[string][]byte{}})
	require.NoError(t, err)
	_, err = b.Decode(store.RawRecord{SampleID: 1, Chromosome: "1", Payload: blob})
	require.ErrorIs(t, err, entry.ErrCorrupted)
}

func TestCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	s := schema.DefaultSchema()
	blobs := blobstore.NewMemoryStore()
	b := New(blobs, "study", s.Version(), WithCacheSize(8))
	db := store.New(b, s)
	v1 := variant.MustParse("1:10:A:C")
	v2 := variant.MustParse("1:20:A:C")

	require.NoError(t, db.Write(ctx, testutil.Builder(t, s, 1, "0/1", v1)))
	e, err := db.Read(ctx, 1, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Count())

	nb := testutil.Builder(t, s, 1, "0/1", v2)
	require.NoError(t, db.MergeExisting(ctx, nb, variant.Region{Chromosome: "1", Start: 1, End: 100}))
	require.NoError(t, db.Write(ctx, nb))

	e, err = db.Read(ctx, 1, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Count())

	gets := blobs.Stats().Gets
	_, err = db.Read(ctx, 1, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, gets, blobs.Stats().Gets, "cached document read again")
}
