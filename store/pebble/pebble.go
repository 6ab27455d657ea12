// Package pebble stores the sample index in a cockroachdb/pebble database.
//
// Every column of a row is its own key:
//
//	study/version/ | sampleID | chromosome | 0x00 | batchStart | column
//
// so a mutation can remove stale columns without rewriting the row, and a
// scan over a batch range is a single bounded iterator.
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/store"
)

// Option configures a Backend.
type Option func(*options)

type options struct {
	fs     vfs.FS
	sync   bool
	logger *slog.Logger
}

// WithFS sets the file system of a database opened with Open, e.g.
// vfs.NewMem() in tests.
func WithFS(fs vfs.FS) Option {
	return func(o *options) { o.fs = fs }
}

// WithSync makes every Apply wait for the WAL to be synced. Default true.
func WithSync(sync bool) Option {
	return func(o *options) { o.sync = sync }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Backend implements store.Backend on pebble.
type Backend struct {
	db     *pebble.DB
	owned  bool
	prefix []byte
	opts   options
	closed atomic.Bool
}

var _ store.Backend = (*Backend)(nil)

// Open opens (or creates) a database at path and binds it to one study and
// schema version.
func Open(path, study string, version int, optFns ...Option) (*Backend, error) {
	o := applyOptions(optFns)
	popts := &pebble.Options{}
	if o.fs != nil {
		popts.FS = o.fs
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble %q: %w", path, err)
	}
	b := newBackend(db, study, version, o)
	b.owned = true
	return b, nil
}

// New binds an already open database. Close does not close db.
func New(db *pebble.DB, study string, version int, optFns ...Option) *Backend {
	return newBackend(db, study, version, applyOptions(optFns))
}

func applyOptions(optFns []Option) options {
	o := options{sync: true, logger: slog.Default()}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

func newBackend(db *pebble.DB, study string, version int, o options) *Backend {
	prefix := append([]byte(study), '/')
	prefix = strconv.AppendInt(prefix, int64(version), 10)
	prefix = append(prefix, '/')
	return &Backend{db: db, prefix: prefix, opts: o}
}

// DB returns the underlying database.
func (b *Backend) DB() *pebble.DB { return b.db }

// RowKey implements store.Backend.
func (b *Backend) RowKey(sampleID int, chromosome string, batchStart int) []byte {
	return store.EncodeRowKey(slices.Clone(b.prefix), sampleID, chromosome, batchStart)
}

func (b *Backend) columnKey(m *entry.Mutation, column string) []byte {
	return append(b.RowKey(m.SampleID, m.Chromosome, m.BatchStart), column...)
}

// Chromosomes implements store.Backend. It seeks past each chromosome
// instead of visiting its rows.
func (b *Backend) Chromosomes(ctx context.Context, sampleID int) ([]string, error) {
	if b.closed.Load() {
		return nil, store.ErrClosed
	}
	lower := store.SamplePrefix(slices.Clone(b.prefix), sampleID)
	upper := store.SamplePrefix(slices.Clone(b.prefix), sampleID+1)
	it, err := b.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var chroms []string
	for valid := it.First(); valid; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rest := it.Key()[len(lower):]
		sep := bytes.IndexByte(rest, 0)
		if sep < 0 {
			return nil, fmt.Errorf("%w: malformed key %x", entry.ErrCorrupted, it.Key())
		}
		chrom := string(rest[:sep])
		chroms = append(chroms, chrom)
		next := append(slices.Clone(lower), chrom...)
		valid = it.SeekGE(append(next, 1))
	}
	return chroms, it.Error()
}

// Scan implements store.Backend.
func (b *Backend) Scan(ctx context.Context, r store.ScanRange) iter.Seq2[store.RawRecord, error] {
	return func(yield func(store.RawRecord, error) bool) {
		if b.closed.Load() {
			yield(store.RawRecord{}, store.ErrClosed)
			return
		}
		chromPrefix := store.ChromosomePrefix(slices.Clone(b.prefix), r.SampleID, r.Chromosome)
		lower := binary.BigEndian.AppendUint32(slices.Clone(chromPrefix), uint32(r.FromBatch))
		upper := binary.BigEndian.AppendUint32(slices.Clone(chromPrefix), uint32(r.ToBatch)+1)
		it, err := b.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
		if err != nil {
			yield(store.RawRecord{}, err)
			return
		}
		defer it.Close()

		rowLen := len(chromPrefix) + 4
		var (
			cur    store.RawRecord
			curKey []byte
		)
		for valid := it.First(); valid; valid = it.Next() {
			key := it.Key()
			if len(key) <= rowLen {
				yield(store.RawRecord{}, fmt.Errorf("%w: malformed key %x", entry.ErrCorrupted, key))
				return
			}
			if curKey == nil || !bytes.Equal(curKey, key[:rowLen]) {
				if curKey != nil {
					if err := ctx.Err(); err != nil {
						yield(store.RawRecord{}, err)
						return
					}
					if !yield(cur, nil) {
						return
					}
				}
				curKey = slices.Clone(key[:rowLen])
				cur = store.RawRecord{
					SampleID:   r.SampleID,
					Chromosome: r.Chromosome,
					BatchStart: int(binary.BigEndian.Uint32(key[len(chromPrefix):])),
					Columns:    make(entry.Columns),
				}
			}
			cur.Columns[string(key[rowLen:])] = slices.Clone(it.Value())
		}
		if err := it.Error(); err != nil {
			yield(store.RawRecord{}, err)
			return
		}
		if curKey == nil {
			return
		}
		if err := ctx.Err(); err != nil {
			yield(store.RawRecord{}, err)
			return
		}
		yield(cur, nil)
	}
}

// Decode implements store.Backend.
func (b *Backend) Decode(rec store.RawRecord) (*entry.SampleIndexEntry, error) {
	return store.DecodeColumns(rec)
}

// Apply implements store.Backend. All mutations are committed in one batch.
func (b *Backend) Apply(ctx context.Context, ms []entry.Mutation) error {
	if b.closed.Load() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.db.NewBatch()
	defer batch.Close()

	for i := range ms {
		m := &ms[i]
		for _, name := range m.Delete {
			if err := batch.Delete(b.columnKey(m, name), nil); err != nil {
				return err
			}
		}
		for name, v := range m.Put {
			if err := batch.Set(b.columnKey(m, name), v, nil); err != nil {
				return err
			}
		}
	}
	if batch.Empty() {
		return nil
	}
	wo := pebble.NoSync
	if b.opts.sync {
		wo = pebble.Sync
	}
	if err := batch.Commit(wo); err != nil {
		return err
	}
	b.opts.logger.Debug("pebble batch committed", "mutations", len(ms), "bytes", batch.Len())
	return nil
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.owned {
		return b.db.Close()
	}
	return nil
}
