// Package sampleidx provides a per-sample variant index for genomic
// studies.
//
// Every sample of a study gets one row per chromosome batch of one million
// bases. A row lists the variants of each genotype of the sample, together
// with compact bit-packed indexes of the variant's file attributes,
// annotation, population frequencies and clinical significance. Queries on
// samples and genotypes are answered by scanning only the rows of the
// selected samples and regions.
//
// # Quick Start
//
//	backend, _ := pebble.Open("./index", "study", schema.DefaultSchema().Version())
//	db, _ := sampleidx.New("study", backend, schema.DefaultSchema(), metadata)
//	defer db.Close()
//
//	b := db.NewBuilder(sampleID)
//	b.Add("0/1", sampleVariant)
//	db.Write(ctx, b)
//
//	variants, remaining, _ := db.Query(ctx, query.VariantQuery{
//	    query.ParamGenotype: "child:0/1;father:0/0",
//	    query.ParamRegion:   "1:1000000-2000000",
//	})
//	for v, err := range variants {
//	    ...
//	}
//
// The remaining query holds the filters the index could not answer
// exactly. They still have to be applied to the returned variants.
//
// # Backends
//
// Rows are stored by a store.Backend:
//
//   - store.MemoryBackend keeps rows in memory, for tests
//   - store/pebble stores rows as one key per column in a Pebble database
//   - store/dynamodb stores one item per row in a DynamoDB table
//   - store/document stores one document per row in a blobstore.BlobStore
//     such as local files or S3
//
// # Schemas
//
// The bit layout of a row is fixed by a schema.SampleIndexSchema. Rows
// carry the schema version they were written with; reading them with
// another version fails with ErrSchemaMismatch. A schema.Registry tracks
// which version of a study is STAGING, ACTIVE or DEPRECATED.
//
// # Observability
//
// Use WithLogger for structured logging through log/slog and
// WithMetricsCollector to record query, count, write and scan statistics.
// The metrics/prometheus package exports them to Prometheus.
package sampleidx
