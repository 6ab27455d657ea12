package sampleidx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordQuery is called when a query iteration ends. samples is the
	// number of samples queried, results the number of variants returned.
	RecordQuery(samples, results int, duration time.Duration, err error)

	// RecordCount is called after each count operation.
	RecordCount(count int, duration time.Duration, err error)

	// RecordWrite is called after each write. rows is the number of rows
	// written and bytes their estimated size.
	RecordWrite(rows, bytes int, duration time.Duration, err error)

	// RecordScan is called when a single sample scan ends. rows is the number
	// of fetched rows.
	RecordScan(rows int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCount(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordWrite(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordScan(int, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryResults    atomic.Int64
	QueryTotalNanos atomic.Int64
	CountCount      atomic.Int64
	CountErrors     atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteRows       atomic.Int64
	WriteBytes      atomic.Int64
	ScanCount       atomic.Int64
	ScanErrors      atomic.Int64
	ScanRows        atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_, results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryResults.Add(int64(results))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordCount implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCount(_ int, _ time.Duration, err error) {
	b.CountCount.Add(1)
	if err != nil {
		b.CountErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(rows, bytes int, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteRows.Add(int64(rows))
	b.WriteBytes.Add(int64(bytes))
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(rows int, _ time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanRows.Add(int64(rows))
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QueryCount:    b.QueryCount.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryResults:  b.QueryResults.Load(),
		QueryAvgNanos: b.getAvgQueryNanos(),
		CountCount:    b.CountCount.Load(),
		CountErrors:   b.CountErrors.Load(),
		WriteCount:    b.WriteCount.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		WriteRows:     b.WriteRows.Load(),
		WriteBytes:    b.WriteBytes.Load(),
		ScanCount:     b.ScanCount.Load(),
		ScanErrors:    b.ScanErrors.Load(),
		ScanRows:      b.ScanRows.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount    int64
	QueryErrors   int64
	QueryResults  int64
	QueryAvgNanos int64
	CountCount    int64
	CountErrors   int64
	WriteCount    int64
	WriteErrors   int64
	WriteRows     int64
	WriteBytes    int64
	ScanCount     int64
	ScanErrors    int64
	ScanRows      int64
}
