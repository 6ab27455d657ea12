// Package store persists sample index entries and answers queries over them.
//
// A Backend maps (sample, chromosome, batch) rows to column sets. The
// SampleIndexDB on top of it plans scan ranges from a query, fetches rows
// sequentially and decodes and filters them on a small worker pool while
// keeping the fetch order.
//
// Backends:
//
//   - store/pebble: embedded key-value store
//   - store/dynamodb: Amazon DynamoDB table
//   - store/document: JSON documents on a blobstore.BlobStore
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/filter"
	"github.com/hupe1980/sampleidx/variant"
)

var (
	// ErrQuery wraps decode and filter failures of a scan.
	ErrQuery = filter.ErrQuery
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("sample index entry not found")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("sample index backend closed")
)

// ScanRange selects the rows of one sample on one chromosome whose batch
// start lies in [FromBatch, ToBatch].
type ScanRange struct {
	SampleID   int
	Chromosome string
	FromBatch  int
	ToBatch    int
}

// Contains reports whether the row of batchStart is within the range.
func (r ScanRange) Contains(batchStart int) bool {
	return batchStart >= r.FromBatch && batchStart <= r.ToBatch
}

func (r ScanRange) String() string {
	return fmt.Sprintf("%d/%s:%d-%d", r.SampleID, r.Chromosome, r.FromBatch, r.ToBatch)
}

// RawRecord is a fetched row that has not been decoded yet. Key value
// backends fill Columns, document backends may keep the stored document in
// Payload and decode it in Backend.Decode.
type RawRecord struct {
	SampleID   int
	Chromosome string
	BatchStart int
	Columns    entry.Columns
	Payload    []byte
}

// Backend is the storage contract of the sample index. Rows are partitioned
// by schema version, which is fixed per backend instance.
type Backend interface {
	// RowKey returns the storage key of a row.
	RowKey(sampleID int, chromosome string, batchStart int) []byte
	// Chromosomes lists the chromosomes with at least one row of a sample.
	Chromosomes(ctx context.Context, sampleID int) ([]string, error)
	// Scan yields the rows of r in ascending batch order.
	Scan(ctx context.Context, r ScanRange) iter.Seq2[RawRecord, error]
	// Decode turns a fetched row into an entry. It is called concurrently.
	Decode(rec RawRecord) (*entry.SampleIndexEntry, error)
	// Apply writes mutations. Within a mutation the deletes are applied
	// before the puts; atomicity across rows is up to the backend.
	Apply(ctx context.Context, ms []entry.Mutation) error
	Close() error
}

// DecodeColumns is the Decode implementation of column based backends.
func DecodeColumns(rec RawRecord) (*entry.SampleIndexEntry, error) {
	return entry.DecodeColumns(rec.SampleID, rec.Chromosome, rec.BatchStart, rec.Columns)
}

func rowName(rec RawRecord) string {
	return fmt.Sprintf("%d/%s:%d", rec.SampleID, rec.Chromosome, rec.BatchStart)
}

// FullRange selects every batch of a chromosome.
func FullRange(sampleID int, chromosome string) ScanRange {
	return ScanRange{
		SampleID:   sampleID,
		Chromosome: chromosome,
		FromBatch:  0,
		ToBatch:    variant.BatchStart(variant.MaxPosition),
	}
}
