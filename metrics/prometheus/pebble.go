package prometheus

import (
	"github.com/cockroachdb/pebble"
	prom "github.com/prometheus/client_golang/prometheus"
)

type pebbleMetric struct {
	desc  *prom.Desc
	kind  prom.ValueType
	value func(*pebble.Metrics) float64
}

// PebbleCollector exports compaction, memtable and WAL statistics of the
// Pebble database behind a store/pebble backend.
type PebbleCollector struct {
	db      *pebble.DB
	metrics []pebbleMetric
}

// NewPebbleCollector creates a collector for db. Register it with
// prometheus.Registerer.Register.
func NewPebbleCollector(db *pebble.DB, constLabels prom.Labels) *PebbleCollector {
	metric := func(name, help string, kind prom.ValueType, value func(*pebble.Metrics) float64) pebbleMetric {
		return pebbleMetric{
			desc:  prom.NewDesc(prom.BuildFQName(namespace, "pebble", name), help, nil, constLabels),
			kind:  kind,
			value: value,
		}
	}
	return &PebbleCollector{
		db: db,
		metrics: []pebbleMetric{
			metric("compaction_count_total", "Compactions performed", prom.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.Count) }),
			metric("compaction_estimated_debt_bytes", "Bytes to compact to reach a stable state", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.EstimatedDebt) }),
			metric("compaction_in_progress_bytes", "Bytes of compactions in progress", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.InProgressBytes) }),
			metric("memtable_size_bytes", "Bytes allocated by memtables", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.Size) }),
			metric("memtable_count", "Memtables", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.Count) }),
			metric("wal_files", "Live WAL files", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.Files) }),
			metric("wal_size_bytes", "Size of the live WAL data", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.Size) }),
			metric("wal_bytes_in_total", "Logical bytes written to the WAL", prom.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.BytesIn) }),
			metric("wal_bytes_written_total", "Physical bytes written to the WAL", prom.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.BytesWritten) }),
			metric("disk_space_usage_bytes", "Disk space used by the database", prom.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.DiskSpaceUsage()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PebbleCollector) Describe(ch chan<- *prom.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PebbleCollector) Collect(ch chan<- prom.Metric) {
	stats := c.db.Metrics()
	for _, m := range c.metrics {
		ch <- prom.MustNewConstMetric(m.desc, m.kind, m.value(stats))
	}
}
