package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlobStore(t *testing.T, store BlobStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	data := []byte("hello world, this is a test blob")
	require.NoError(t, store.Put(ctx, "s1/1_0.json", data))
	require.NoError(t, store.Put(ctx, "s1/2_0.json", []byte("two")))
	require.NoError(t, store.Put(ctx, "s2/1_0.json", []byte("other")))

	got, err := store.Get(ctx, "s1/1_0.json")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// returned slices are not shared with the store
	got[0] = 'X'
	again, err := store.Get(ctx, "s1/1_0.json")
	require.NoError(t, err)
	assert.Equal(t, data, again)

	require.NoError(t, store.Put(ctx, "s1/1_0.json", []byte("replaced")))
	got, err = store.Get(ctx, "s1/1_0.json")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(got))

	names, err := store.List(ctx, "s1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1/1_0.json", "s1/2_0.json"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 3)

	require.NoError(t, store.Delete(ctx, "s1/2_0.json"))
	require.NoError(t, store.Delete(ctx, "s1/2_0.json"))
	_, err = store.Get(ctx, "s1/2_0.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	testBlobStore(t, m)
	assert.Equal(t, MemoryStats{Gets: 5, Puts: 4, Deletes: 2, Lists: 2}, m.Stats())
	assert.Equal(t, 2, m.Len())
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	testBlobStore(t, NewLocalStore(dir))

	_, err := os.Stat(filepath.Join(dir, "s2", "1_0.json"))
	require.NoError(t, err)

	names, err := NewLocalStore(filepath.Join(dir, "missing")).List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCompressedStore(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			testBlobStore(t, NewCompressedStore(NewMemoryStore(), c))
		})
	}
}

func TestCompressShrinks(t *testing.T) {
	data := bytes.Repeat([]byte("0/1:1:1000100:A:C;"), 200)
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		blob, err := Compress(data, c)
		require.NoError(t, err)
		assert.Equal(t, byte(c), blob[0])
		assert.Less(t, len(blob), len(data))

		out, err := Decompress(blob)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}

	// incompressible input is stored raw
	blob, err := Compress([]byte{1, 2, 3}, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(CompressionNone), blob[0])
	out, err := Decompress(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestDecompressCorrupt(t *testing.T) {
	_, err := Decompress([]byte{1, 2})
	require.ErrorIs(t, err, ErrCorruptBlob)

	blob, err := Compress(bytes.Repeat([]byte("abc"), 100), CompressionLZ4)
	require.NoError(t, err)
	_, err = Decompress(blob[:len(blob)-1])
	require.ErrorIs(t, err, ErrCorruptBlob)

	blob[0] = 9
	_, err = Decompress(blob)
	require.ErrorIs(t, err, ErrCorruptBlob)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("snappy")
	require.Error(t, err)
}
