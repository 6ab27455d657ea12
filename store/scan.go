package store

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/internal/workerpool"
)

const (
	// DefaultWorkers is the number of decode workers of a scan.
	DefaultWorkers = 4
	// DefaultMaxPending bounds the fetched rows waiting for their conversion.
	DefaultMaxPending = 50
)

// Recorder receives scan statistics.
type Recorder interface {
	RecordScan(rows int, duration time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordScan(int, time.Duration, error) {}

// ScanIterator fetches rows sequentially and converts them concurrently.
// Values are yielded in fetch order.
//
// A ScanIterator is not safe for concurrent use. It must be closed.
type ScanIterator[T any] struct {
	ctx     context.Context
	cancel  context.CancelFunc
	backend Backend
	convert func(*entry.SampleIndexEntry) ([]T, error)

	pool       *workerpool.Pool
	maxPending int
	next       func() (RawRecord, error, bool)
	stopScan   func()
	pending    []*workerpool.Future[[]T]
	exhausted  bool

	buf   []T
	cur   T
	err   error
	done  bool
	rows  int
	start time.Time
	rec   Recorder
}

func newScanIterator[T any](ctx context.Context, b Backend, ranges []ScanRange, convert func(*entry.SampleIndexEntry) ([]T, error), workers, maxPending int, rec Recorder) *ScanIterator[T] {
	ctx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(concatScans(ctx, b, ranges))
	return &ScanIterator[T]{
		ctx:        ctx,
		cancel:     cancel,
		backend:    b,
		convert:    convert,
		pool:       workerpool.New(workers),
		maxPending: maxPending,
		next:       next,
		stopScan:   stop,
		start:      time.Now(),
		rec:        rec,
	}
}

func concatScans(ctx context.Context, b Backend, ranges []ScanRange) iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		for _, r := range ranges {
			for rec, err := range b.Scan(ctx, r) {
				if !yield(rec, err) || err != nil {
					return
				}
			}
		}
	}
}

// fill fetches rows until maxPending conversions are queued or the scan is
// exhausted.
func (it *ScanIterator[T]) fill() error {
	for !it.exhausted && len(it.pending) < it.maxPending {
		rec, err, ok := it.next()
		if !ok {
			it.exhausted = true
			return nil
		}
		if err != nil {
			return err
		}
		it.rows++
		f, err := workerpool.Go(it.ctx, it.pool, func() ([]T, error) {
			e, err := it.backend.Decode(rec)
			if err != nil {
				return nil, fmt.Errorf("%w: row %s: %w", ErrQuery, rowName(rec), err)
			}
			return it.convert(e)
		})
		if err != nil {
			return err
		}
		it.pending = append(it.pending, f)
	}
	return nil
}

// Next advances to the next value.
func (it *ScanIterator[T]) Next() bool {
	if it.done {
		return false
	}
	for len(it.buf) == 0 {
		if err := it.fill(); err != nil {
			return it.fail(err)
		}
		if len(it.pending) == 0 {
			it.finish()
			return false
		}
		f := it.pending[0]
		it.pending[0] = nil
		it.pending = it.pending[1:]
		values, err := f.Get(it.ctx)
		if err != nil {
			return it.fail(err)
		}
		it.buf = values
	}
	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

// Value returns the current value.
func (it *ScanIterator[T]) Value() T { return it.cur }

// Err returns the first error of the scan.
func (it *ScanIterator[T]) Err() error { return it.err }

func (it *ScanIterator[T]) fail(err error) bool {
	it.err = err
	it.finish()
	return false
}

func (it *ScanIterator[T]) finish() {
	if it.done {
		return
	}
	it.done = true
	it.rec.RecordScan(it.rows, time.Since(it.start), it.err)
	it.release()
}

func (it *ScanIterator[T]) release() {
	it.pool.Shutdown()
	it.stopScan()
	it.cancel()
	it.pending = nil
	it.buf = nil
}

// Close releases the scan and the worker pool without waiting for running
// conversions.
func (it *ScanIterator[T]) Close() error {
	if !it.done {
		it.finish()
	}
	return nil
}

// All ranges over the remaining values and closes the iterator when done.
func (it *ScanIterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.Value(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
