package store

import (
	"bytes"
	"context"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/sampleidx/entry"
)

// MemoryBackend keeps rows in memory. It is safe for concurrent use and
// meant for tests and small studies.
type MemoryBackend struct {
	mu     sync.RWMutex
	rows   map[string]entry.Columns
	closed bool
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[string]entry.Columns)}
}

// RowKey implements Backend.
func (m *MemoryBackend) RowKey(sampleID int, chromosome string, batchStart int) []byte {
	return EncodeRowKey(nil, sampleID, chromosome, batchStart)
}

// Chromosomes implements Backend.
func (m *MemoryBackend) Chromosomes(_ context.Context, sampleID int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	prefix := SamplePrefix(nil, sampleID)
	seen := make(map[string]struct{})
	for k := range m.rows {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if _, chrom, _, err := DecodeRowKey([]byte(k)); err == nil {
			seen[chrom] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Scan implements Backend. The rows are snapshotted when the scan starts.
func (m *MemoryBackend) Scan(ctx context.Context, r ScanRange) iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			yield(RawRecord{}, ErrClosed)
			return
		}
		lower := string(m.RowKey(r.SampleID, r.Chromosome, r.FromBatch))
		upper := string(m.RowKey(r.SampleID, r.Chromosome, r.ToBatch))
		var keys []string
		for k := range m.rows {
			if k >= lower && k <= upper {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		recs := make([]RawRecord, len(keys))
		for i, k := range keys {
			_, _, batch, _ := DecodeRowKey([]byte(k))
			recs[i] = RawRecord{
				SampleID:   r.SampleID,
				Chromosome: r.Chromosome,
				BatchStart: batch,
				Columns:    maps.Clone(m.rows[k]),
			}
		}
		m.mu.RUnlock()

		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				yield(RawRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Decode implements Backend.
func (m *MemoryBackend) Decode(rec RawRecord) (*entry.SampleIndexEntry, error) {
	return DecodeColumns(rec)
}

// Apply implements Backend.
func (m *MemoryBackend) Apply(_ context.Context, ms []entry.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, mu := range ms {
		key := string(m.RowKey(mu.SampleID, mu.Chromosome, mu.BatchStart))
		row := m.rows[key]
		if row == nil {
			row = make(entry.Columns, len(mu.Put))
		}
		for _, name := range mu.Delete {
			delete(row, name)
		}
		for name, v := range mu.Put {
			row[name] = slices.Clone(v)
		}
		if len(row) == 0 {
			delete(m.rows, key)
			continue
		}
		m.rows[key] = row
	}
	return nil
}

// Len returns the number of rows.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.rows = nil
	return nil
}
