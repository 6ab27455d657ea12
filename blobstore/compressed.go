package blobstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm of a CompressedStore.
type Compression uint8

const (
	// CompressionNone stores blobs as they are, with a header.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast block compression, good for hot data.
	CompressionLZ4 Compression = 1
	// CompressionZSTD has a better ratio, good for cold data.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// ErrCorruptBlob is returned when a compressed blob cannot be decoded.
var ErrCorruptBlob = errors.New("corrupt compressed blob")

// Header: [algorithm uint8][uncompressed size uint32][stored size uint32].
// A blob that does not shrink is stored raw with algorithm CompressionNone.
const headerSize = 9

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress encodes data with algorithm c.
func Compress(data []byte, c Compression) ([]byte, error) {
	var body []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		body = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		body = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
	// lz4 reports incompressible input with n == 0
	if len(body) == 0 || len(body) >= len(data) {
		c, body = CompressionNone, data
	}
	out := make([]byte, headerSize, headerSize+len(body))
	out[0] = byte(c)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[5:], uint32(len(body)))
	return append(out, body...), nil
}

// Decompress decodes a blob written by Compress.
func Decompress(blob []byte) ([]byte, error) {
	if len(blob) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptBlob, len(blob))
	}
	c := Compression(blob[0])
	size := binary.LittleEndian.Uint32(blob[1:])
	stored := binary.LittleEndian.Uint32(blob[5:])
	if uint32(len(blob)-headerSize) != stored {
		return nil, fmt.Errorf("%w: stored size %d, have %d", ErrCorruptBlob, stored, len(blob)-headerSize)
	}
	body := blob[headerSize:]

	switch c {
	case CompressionNone:
		if stored != size {
			return nil, fmt.Errorf("%w: raw size mismatch", ErrCorruptBlob)
		}
		return body, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlob)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlob)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: algorithm %d", ErrCorruptBlob, c)
	}
}

// CompressedStore compresses blobs written to an inner store. Reads detect
// the algorithm from the blob header.
type CompressedStore struct {
	inner       BlobStore
	compression Compression
}

// NewCompressedStore wraps inner.
func NewCompressedStore(inner BlobStore, c Compression) *CompressedStore {
	return &CompressedStore{inner: inner, compression: c}
}

// Get reads and decompresses a blob.
func (s *CompressedStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	out, err := Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Put compresses and writes a blob.
func (s *CompressedStore) Put(ctx context.Context, name string, data []byte) error {
	blob, err := Compress(data, s.compression)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, name, blob)
}

// Delete removes a blob.
func (s *CompressedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List lists the blobs of the inner store.
func (s *CompressedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}
