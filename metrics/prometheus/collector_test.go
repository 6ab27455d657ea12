package prometheus_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	prom "github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sampleidx/metrics/prometheus"
)

func TestCollector(t *testing.T) {
	reg := prom.NewPedanticRegistry()
	c, err := prometheus.New(reg, prometheus.WithConstLabels(prom.Labels{"study": "s1"}))
	require.NoError(t, err)

	c.RecordQuery(2, 10, 5*time.Millisecond, nil)
	c.RecordQuery(1, 0, time.Millisecond, errors.New("boom"))
	c.RecordCount(7, time.Millisecond, nil)
	c.RecordWrite(3, 300, time.Millisecond, nil)
	c.RecordScan(4, time.Millisecond, nil)

	n, err := promtest.GatherAndCount(reg,
		"sampleidx_operations_total",
		"sampleidx_query_results_total",
	)
	require.NoError(t, err)
	// query success, query error, count, write, scan and the results counter
	assert.Equal(t, 6, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			key := f.GetName()
			for _, l := range m.GetLabel() {
				if l.GetName() != "study" {
					key += "/" + l.GetValue()
				}
			}
			values[key] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["sampleidx_operations_total/query/success"])
	assert.Equal(t, 1.0, values["sampleidx_operations_total/query/error"])
	assert.Equal(t, 10.0, values["sampleidx_query_results_total"])
	assert.Equal(t, 7.0, values["sampleidx_counted_variants_total"])
	assert.Equal(t, 3.0, values["sampleidx_rows_total/write"])
	assert.Equal(t, 4.0, values["sampleidx_rows_total/scan"])
	assert.Equal(t, 300.0, values["sampleidx_written_bytes_total"])
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prom.NewRegistry()
	_, err := prometheus.New(reg)
	require.NoError(t, err)
	_, err = prometheus.New(reg)
	require.Error(t, err)
	assert.Panics(t, func() { prometheus.MustNew(reg) })
}

func TestPebbleCollector(t *testing.T) {
	db, err := pebble.Open("db", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Set([]byte("k"), []byte("v"), pebble.Sync))

	c := prometheus.NewPebbleCollector(db, nil)
	assert.Equal(t, 10, promtest.CollectAndCount(c))

	reg := prom.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	n, err := promtest.GatherAndCount(reg, "sampleidx_pebble_wal_bytes_in_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
