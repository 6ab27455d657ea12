package sampleidx_test

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/hupe1980/sampleidx"
	"github.com/hupe1980/sampleidx/query"
	"github.com/hupe1980/sampleidx/resource"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/store"
	"github.com/hupe1980/sampleidx/testutil"
	"github.com/hupe1980/sampleidx/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var family = query.StaticMetadata{
	"child":  {ID: 1, Father: "father", Mother: "mother", Files: []string{"child.vcf"}},
	"father": {ID: 2, Files: []string{"father.vcf"}},
	"mother": {ID: 3, Files: []string{"mother.vcf"}},
}

var (
	v1 = variant.MustParse("1:100:A:C")
	v2 = variant.MustParse("1:150:G:T")
	v3 = variant.MustParse("1:2000100:C:G")
	v4 = variant.MustParse("2:500:T:A")
)

func newDB(t *testing.T, opts ...sampleidx.Option) *sampleidx.DB {
	t.Helper()
	db, err := sampleidx.New("study", store.NewMemoryBackend(), schema.DefaultSchema(), family, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := db.Schema()
	child := testutil.Builder(t, s, 1, "0/1", v1, v3)
	require.NoError(t, child.Add("1/1", testutil.SampleVariant(t, s, v4, 0, nil)))
	require.NoError(t, db.Write(context.Background(),
		child,
		testutil.Builder(t, s, 2, "0/1", v1, v2),
		testutil.Builder(t, s, 3, "1/1", v3, v4),
	))
	return db
}

func collect(t *testing.T, seq iter.Seq2[variant.Variant, error]) []variant.Variant {
	t.Helper()
	var out []variant.Variant
	for v, err := range seq {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestQuery(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query query.VariantQuery
		want  []variant.Variant
	}{
		{"sample", query.VariantQuery{query.ParamSample: "child"}, []variant.Variant{v1, v3, v4}},
		{"genotype", query.VariantQuery{query.ParamGenotype: "child:1/1"}, []variant.Variant{v4}},
		{"region", query.VariantQuery{query.ParamSample: "child", query.ParamRegion: "1:1-1000"}, []variant.Variant{v1}},
		{"and", query.VariantQuery{query.ParamSample: "child;father"}, []variant.Variant{v1}},
		{"or", query.VariantQuery{query.ParamSample: "father,mother"}, []variant.Variant{v1, v2, v3, v4}},
		{"genotypes or", query.VariantQuery{query.ParamGenotype: "father:0/1,mother:1/1"}, []variant.Variant{v1, v2, v3, v4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, _, err := db.Query(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, collect(t, seq))

			n, err := db.Count(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestQueryDoesNotModifyInput(t *testing.T) {
	db := newDB(t)
	q := query.VariantQuery{query.ParamSample: "child", query.ParamRegion: "1"}
	_, _, err := db.Query(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, query.VariantQuery{query.ParamSample: "child", query.ParamRegion: "1"}, q)
}

func TestInvalidQuery(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for _, q := range []query.VariantQuery{
		{},
		{query.ParamSample: "!child"},
		{query.ParamSample: "nobody"},
		{query.ParamSample: "child", query.ParamRegion: "1:x-y"},
	} {
		_, _, err := db.Query(ctx, q)
		assert.ErrorIs(t, err, sampleidx.ErrInvalidQuery, "%v", q)
		_, err = db.Count(ctx, q)
		assert.ErrorIs(t, err, sampleidx.ErrInvalidQuery, "%v", q)
	}
}

func TestCountInexactQuery(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	q := query.VariantQuery{query.ParamSample: "child", query.ParamQual: ">25"}

	seq, rem, err := db.Query(ctx, q)
	require.NoError(t, err)
	assert.True(t, rem.Has(query.ParamQual))
	collect(t, seq)

	_, err = db.Count(ctx, q)
	require.ErrorIs(t, err, sampleidx.ErrInexactCount)
	assert.Contains(t, err.Error(), "qual")

	n, err := db.Count(ctx, query.VariantQuery{query.ParamSample: "child", query.ParamStudy: "study"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRead(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	e, err := db.Read(ctx, 1, "1", 2_000_100)
	require.NoError(t, err)
	assert.Equal(t, 2*variant.BatchSize, e.BatchStart)
	assert.Equal(t, []string{"0/1"}, e.Genotypes())

	_, err = db.Read(ctx, 1, "3", 1)
	require.ErrorIs(t, err, sampleidx.ErrNotFound)
}

func TestMergeExisting(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	v5 := variant.MustParse("1:120:A:G")

	b := testutil.Builder(t, db.Schema(), 2, "1/1", v5)
	require.NoError(t, db.MergeExisting(ctx, b, variant.Region{Chromosome: "1", Start: 1, End: 1000}))
	require.NoError(t, db.Write(ctx, b))

	seq, _, err := db.Query(ctx, query.VariantQuery{query.ParamSample: "father"})
	require.NoError(t, err)
	assert.Equal(t, []variant.Variant{v1, v5, v2}, collect(t, seq))
}

func TestSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	v1Schema := schema.DefaultSchema()
	db, err := sampleidx.New("study", backend, v1Schema, family)
	require.NoError(t, err)
	require.NoError(t, db.Write(ctx, testutil.Builder(t, v1Schema, 1, "0/1", v1)))

	v2Schema := schema.MustNew(v1Schema.Version()+1, schema.Default())
	other, err := sampleidx.New("study", backend, v2Schema, family, sampleidx.WithRegistry(db.Registry()))
	require.NoError(t, err)

	seq, _, err := other.Query(ctx, query.VariantQuery{query.ParamSample: "child"})
	require.NoError(t, err)
	for _, err = range seq {
		if err != nil {
			break
		}
	}
	var mismatch *sampleidx.ErrSchemaMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, v2Schema.Version(), mismatch.Expected)
	assert.Equal(t, v1Schema.Version(), mismatch.Actual)
	assert.ErrorIs(t, err, schema.ErrVersionMismatch)

	status, err := db.Status()
	require.NoError(t, err)
	assert.Equal(t, schema.StatusActive, status)
	status, err = other.Status()
	require.NoError(t, err)
	assert.Equal(t, schema.StatusStaging, status)
}

func TestMetrics(t *testing.T) {
	mc := &sampleidx.BasicMetricsCollector{}
	db := newDB(t, sampleidx.WithMetricsCollector(mc), sampleidx.WithWorkers(2), sampleidx.WithMaxPending(1))
	ctx := context.Background()

	seq, _, err := db.Query(ctx, query.VariantQuery{query.ParamSample: "child"})
	require.NoError(t, err)
	collect(t, seq)
	_, err = db.Count(ctx, query.VariantQuery{query.ParamSample: "mother"})
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.WriteCount)
	assert.Equal(t, int64(6), stats.WriteRows)
	assert.Positive(t, stats.WriteBytes)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(3), stats.QueryResults)
	assert.Equal(t, int64(1), stats.CountCount)
	assert.Equal(t, int64(2), stats.ScanCount)
	assert.Zero(t, stats.QueryErrors+stats.ScanErrors+stats.CountErrors)
}

func TestResourceController(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxBackgroundWorkers: 1, MemoryLimitBytes: 16})
	db, err := sampleidx.New("study", store.NewMemoryBackend(), schema.DefaultSchema(), family,
		sampleidx.WithResourceController(rc))
	require.NoError(t, err)
	defer db.Close()

	err = db.Write(context.Background(), testutil.Builder(t, db.Schema(), 1, "0/1", v1))
	require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
}

func TestClose(t *testing.T) {
	db, err := sampleidx.New("study", store.NewMemoryBackend(), schema.DefaultSchema(), family)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, _, err = db.Query(context.Background(), query.VariantQuery{query.ParamSample: "child"})
	assert.ErrorIs(t, err, sampleidx.ErrClosed)
	assert.ErrorIs(t, db.Write(context.Background()), sampleidx.ErrClosed)
	_, err = db.Read(context.Background(), 1, "1", 1)
	assert.ErrorIs(t, err, sampleidx.ErrClosed)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := sampleidx.New("study", nil, schema.DefaultSchema(), family)
	assert.ErrorIs(t, err, sampleidx.ErrInvalidArgument)
	_, err = sampleidx.New("study", store.NewMemoryBackend(), nil, family)
	assert.ErrorIs(t, err, sampleidx.ErrInvalidArgument)
	_, err = sampleidx.New("study", store.NewMemoryBackend(), schema.DefaultSchema(), nil)
	assert.ErrorIs(t, err, sampleidx.ErrInvalidArgument)
	assert.False(t, errors.Is(err, sampleidx.ErrInvalidQuery))
}
