// Package document stores each sample index row as one JSON document on a
// blobstore.BlobStore:
//
//	{study}_{version}/{sampleID}/{escaped chromosome}_{batchStart}.json
//
// Documents carry a checksum and the name of the codec that wrote them.
// Recently read documents are kept in an LRU cache.
package document

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/sampleidx/blobstore"
	"github.com/hupe1980/sampleidx/codec"
	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/store"
	"golang.org/x/sync/errgroup"
)

// Option configures a Backend.
type Option func(*options)

type options struct {
	codec       codec.Codec
	compression blobstore.Compression
	cacheSize   int
	concurrency int
	logger      *slog.Logger
}

// WithCodec sets the codec of written documents. Default codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithCompression compresses documents with LZ4 or ZSTD.
func WithCompression(c blobstore.Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithCacheSize sets the number of cached documents. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithConcurrency bounds the number of concurrent document writes.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Backend implements store.Backend on a blob store.
type Backend struct {
	blobs  blobstore.BlobStore
	root   string
	opts   options
	cache  *lru.Cache[string, []byte]
	closed atomic.Bool
}

var _ store.Backend = (*Backend)(nil)

// New creates a backend for one study and schema version.
func New(blobs blobstore.BlobStore, study string, version int, optFns ...Option) *Backend {
	o := options{
		codec:       codec.Default,
		cacheSize:   1024,
		concurrency: 8,
		logger:      slog.Default(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.compression != blobstore.CompressionNone {
		blobs = blobstore.NewCompressedStore(blobs, o.compression)
	}
	b := &Backend{
		blobs: blobs,
		root:  study + "_" + strconv.Itoa(version),
		opts:  o,
	}
	if o.cacheSize > 0 {
		b.cache, _ = lru.New[string, []byte](o.cacheSize)
	}
	return b
}

func (b *Backend) samplePrefix(sampleID int) string {
	return b.root + "/" + strconv.Itoa(sampleID) + "/"
}

func (b *Backend) chromosomePrefix(sampleID int, chromosome string) string {
	return b.samplePrefix(sampleID) + url.PathEscape(chromosome) + "_"
}

func (b *Backend) path(sampleID int, chromosome string, batchStart int) string {
	return b.chromosomePrefix(sampleID, chromosome) + strconv.Itoa(batchStart) + ".json"
}

// parseName splits "{escaped chromosome}_{batch}.json".
func parseName(name string) (string, int, bool) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return "", 0, false
	}
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return "", 0, false
	}
	batch, err := strconv.Atoi(base[i+1:])
	if err != nil || batch < 0 {
		return "", 0, false
	}
	chrom, err := url.PathUnescape(base[:i])
	if err != nil {
		return "", 0, false
	}
	return chrom, batch, true
}

// RowKey implements store.Backend. The key is the document path.
func (b *Backend) RowKey(sampleID int, chromosome string, batchStart int) []byte {
	return []byte(b.path(sampleID, chromosome, batchStart))
}

// Chromosomes implements store.Backend.
func (b *Backend) Chromosomes(ctx context.Context, sampleID int) ([]string, error) {
	if b.closed.Load() {
		return nil, store.ErrClosed
	}
	prefix := b.samplePrefix(sampleID)
	names, err := b.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, name := range names {
		if chrom, _, ok := parseName(strings.TrimPrefix(name, prefix)); ok {
			seen[chrom] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Scan implements store.Backend. The documents of the range are listed
// first and then read one by one.
func (b *Backend) Scan(ctx context.Context, r store.ScanRange) iter.Seq2[store.RawRecord, error] {
	return func(yield func(store.RawRecord, error) bool) {
		if b.closed.Load() {
			yield(store.RawRecord{}, store.ErrClosed)
			return
		}
		prefix := b.chromosomePrefix(r.SampleID, r.Chromosome)
		names, err := b.blobs.List(ctx, prefix)
		if err != nil {
			yield(store.RawRecord{}, err)
			return
		}
		var batches []int
		for _, name := range names {
			chrom, batch, ok := parseName(strings.TrimPrefix(name, b.samplePrefix(r.SampleID)))
			if ok && chrom == r.Chromosome && r.Contains(batch) {
				batches = append(batches, batch)
			}
		}
		slices.Sort(batches)

		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				yield(store.RawRecord{}, err)
				return
			}
			payload, err := b.get(ctx, b.path(r.SampleID, r.Chromosome, batch))
			if errors.Is(err, blobstore.ErrNotFound) {
				// deleted after listing
				continue
			}
			rec := store.RawRecord{
				SampleID:   r.SampleID,
				Chromosome: r.Chromosome,
				BatchStart: batch,
				Payload:    payload,
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func (b *Backend) get(ctx context.Context, path string) ([]byte, error) {
	if b.cache != nil {
		if data, ok := b.cache.Get(path); ok {
			return data, nil
		}
	}
	data, err := b.blobs.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		b.cache.Add(path, data)
	}
	return data, nil
}

// Decode implements store.Backend. It verifies the checksum and the row
// coordinates of the document.
func (b *Backend) Decode(rec store.RawRecord) (*entry.SampleIndexEntry, error) {
	if rec.Payload == nil {
		return store.DecodeColumns(rec)
	}
	doc, err := decodeDocument(rec.Payload)
	if err != nil {
		return nil, err
	}
	if doc.SampleID != rec.SampleID || doc.Chromosome != rec.Chromosome || doc.BatchStart != rec.BatchStart {
		return nil, fmt.Errorf("%w: document of %d/%s:%d stored at %d/%s:%d", entry.ErrCorrupted,
			doc.SampleID, doc.Chromosome, doc.BatchStart, rec.SampleID, rec.Chromosome, rec.BatchStart)
	}
	return entry.DecodeColumns(doc.SampleID, doc.Chromosome, doc.BatchStart, doc.Columns)
}

// Apply implements store.Backend. Each touched document is read, changed
// and written back; documents without columns are deleted. Different
// documents are written concurrently.
func (b *Backend) Apply(ctx context.Context, ms []entry.Mutation) error {
	if b.closed.Load() {
		return store.ErrClosed
	}
	byPath := make(map[string][]*entry.Mutation)
	var order []string
	for i := range ms {
		m := &ms[i]
		if m.Empty() {
			continue
		}
		path := b.path(m.SampleID, m.Chromosome, m.BatchStart)
		if _, ok := byPath[path]; !ok {
			order = append(order, path)
		}
		byPath[path] = append(byPath[path], m)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.opts.concurrency))
	for _, path := range order {
		g.Go(func() error {
			return b.applyDocument(ctx, path, byPath[path])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	b.opts.logger.Debug("documents written", "root", b.root, "documents", len(order))
	return nil
}

func (b *Backend) applyDocument(ctx context.Context, path string, ms []*entry.Mutation) error {
	first := ms[0]
	doc := &Document{
		SampleID:   first.SampleID,
		Chromosome: first.Chromosome,
		BatchStart: first.BatchStart,
		Columns:    make(map[string][]byte),
	}
	data, err := b.blobs.Get(ctx, path)
	switch {
	case err == nil:
		if doc, err = decodeDocument(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if doc.Columns == nil {
			doc.Columns = make(map[string][]byte)
		}
	case !errors.Is(err, blobstore.ErrNotFound):
		return err
	}

	for _, m := range ms {
		for _, name := range m.Delete {
			delete(doc.Columns, name)
		}
		maps.Copy(doc.Columns, m.Put)
	}

	if len(doc.Columns) == 0 {
		err = b.blobs.Delete(ctx, path)
	} else {
		var blob []byte
		if blob, err = encodeDocument(b.opts.codec, doc); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		err = b.blobs.Put(ctx, path, blob)
	}
	if b.cache != nil {
		b.cache.Remove(path)
	}
	return err
}

// Close implements store.Backend. The blob store is not closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	if b.cache != nil {
		b.cache.Purge()
	}
	return nil
}
