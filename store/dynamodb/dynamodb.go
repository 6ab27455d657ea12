// Package dynamodb stores the sample index in an Amazon DynamoDB table.
//
// Each row is one item. The partition key groups the rows of a sample:
//
//	pk = sample_index#{study}#{version}#{sampleID}
//	sk = {chromosome}#{batchStart, zero padded}
//
// and every column is a binary attribute named after the column.
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name sample-index \
//	  --attribute-definitions AttributeName=pk,AttributeType=S AttributeName=sk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH AttributeName=sk,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/store"
	"github.com/sourcegraph/conc/pool"
)

const (
	attrPK = "pk"
	attrSK = "sk"
)

// Client is the subset of the DynamoDB API the backend uses.
// *dynamodb.Client satisfies it.
type Client interface {
	ddb.QueryAPIClient
	UpdateItem(ctx context.Context, params *ddb.UpdateItemInput, optFns ...func(*ddb.Options)) (*ddb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *ddb.DeleteItemInput, optFns ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error)
}

// Option configures a Backend.
type Option func(*options)

type options struct {
	concurrency    int
	consistentRead bool
	logger         *slog.Logger
}

// WithConcurrency bounds the number of concurrent UpdateItem calls. Default 8.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithConsistentRead enables strongly consistent queries.
func WithConsistentRead(consistent bool) Option {
	return func(o *options) { o.consistentRead = consistent }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Backend implements store.Backend on DynamoDB.
type Backend struct {
	client  Client
	table   string
	study   string
	version int
	opts    options
	closed  atomic.Bool
}

var _ store.Backend = (*Backend)(nil)

// New creates a backend for one study and schema version.
func New(client Client, table, study string, version int, optFns ...Option) *Backend {
	o := options{concurrency: 8, logger: slog.Default()}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return &Backend{client: client, table: table, study: study, version: version, opts: o}
}

// NewFromConfig creates a backend with a client from the default AWS
// configuration chain.
func NewFromConfig(ctx context.Context, table, study string, version int, optFns ...Option) (*Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return New(ddb.NewFromConfig(cfg), table, study, version, optFns...), nil
}

func (b *Backend) partitionKey(sampleID int) string {
	return fmt.Sprintf("sample_index#%s#%d#%d", b.study, b.version, sampleID)
}

func sortKey(chromosome string, batchStart int) string {
	return fmt.Sprintf("%s#%010d", chromosome, batchStart)
}

func parseSortKey(sk string) (string, int, error) {
	i := strings.LastIndexByte(sk, '#')
	if i < 0 {
		return "", 0, fmt.Errorf("%w: malformed sort key %q", entry.ErrCorrupted, sk)
	}
	batch, err := strconv.Atoi(sk[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed sort key %q", entry.ErrCorrupted, sk)
	}
	return sk[:i], batch, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// RowKey implements store.Backend.
func (b *Backend) RowKey(sampleID int, chromosome string, batchStart int) []byte {
	return []byte(b.partitionKey(sampleID) + "|" + sortKey(chromosome, batchStart))
}

// Chromosomes implements store.Backend. It pages through the sort keys of
// the sample.
func (b *Backend) Chromosomes(ctx context.Context, sampleID int) ([]string, error) {
	if b.closed.Load() {
		return nil, store.ErrClosed
	}
	p := ddb.NewQueryPaginator(b.client, &ddb.QueryInput{
		TableName:              aws.String(b.table),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ProjectionExpression:   aws.String("#sk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: b.partitionKey(sampleID)},
		},
		ConsistentRead: aws.Bool(b.opts.consistentRead),
	})
	var chroms []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			chrom, _, err := parseSortKey(stringAttr(item, attrSK))
			if err != nil {
				return nil, err
			}
			if n := len(chroms); n == 0 || chroms[n-1] != chrom {
				chroms = append(chroms, chrom)
			}
		}
	}
	return chroms, nil
}

// Scan implements store.Backend.
func (b *Backend) Scan(ctx context.Context, r store.ScanRange) iter.Seq2[store.RawRecord, error] {
	return func(yield func(store.RawRecord, error) bool) {
		if b.closed.Load() {
			yield(store.RawRecord{}, store.ErrClosed)
			return
		}
		p := ddb.NewQueryPaginator(b.client, &ddb.QueryInput{
			TableName:              aws.String(b.table),
			KeyConditionExpression: aws.String("#pk = :pk AND #sk BETWEEN :lo AND :hi"),
			ExpressionAttributeNames: map[string]string{
				"#pk": attrPK,
				"#sk": attrSK,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: b.partitionKey(r.SampleID)},
				":lo": &types.AttributeValueMemberS{Value: sortKey(r.Chromosome, r.FromBatch)},
				":hi": &types.AttributeValueMemberS{Value: sortKey(r.Chromosome, r.ToBatch)},
			},
			ConsistentRead: aws.Bool(b.opts.consistentRead),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield(store.RawRecord{}, err)
				return
			}
			for _, item := range page.Items {
				if err := ctx.Err(); err != nil {
					yield(store.RawRecord{}, err)
					return
				}
				rec, err := toRecord(r.SampleID, item)
				if !yield(rec, err) || err != nil {
					return
				}
			}
		}
	}
}

func toRecord(sampleID int, item map[string]types.AttributeValue) (store.RawRecord, error) {
	chrom, batch, err := parseSortKey(stringAttr(item, attrSK))
	if err != nil {
		return store.RawRecord{}, err
	}
	rec := store.RawRecord{
		SampleID:   sampleID,
		Chromosome: chrom,
		BatchStart: batch,
		Columns:    make(entry.Columns, len(item)),
	}
	for name, v := range item {
		if bv, ok := v.(*types.AttributeValueMemberB); ok {
			rec.Columns[name] = bv.Value
		}
	}
	return rec, nil
}

// Decode implements store.Backend.
func (b *Backend) Decode(rec store.RawRecord) (*entry.SampleIndexEntry, error) {
	return store.DecodeColumns(rec)
}

// Apply implements store.Backend. Each mutation is one UpdateItem call;
// mutations of different rows run concurrently and are not atomic as a
// whole. A row left without columns is deleted.
func (b *Backend) Apply(ctx context.Context, ms []entry.Mutation) error {
	if b.closed.Load() {
		return store.ErrClosed
	}
	p := pool.New().WithMaxGoroutines(b.opts.concurrency).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i := range ms {
		m := &ms[i]
		if m.Empty() {
			continue
		}
		p.Go(func(ctx context.Context) error {
			return b.apply(ctx, m)
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	b.opts.logger.Debug("dynamodb mutations applied", "table", b.table, "mutations", len(ms))
	return nil
}

func (b *Backend) key(m *entry.Mutation) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: b.partitionKey(m.SampleID)},
		attrSK: &types.AttributeValueMemberS{Value: sortKey(m.Chromosome, m.BatchStart)},
	}
}

func (b *Backend) apply(ctx context.Context, m *entry.Mutation) error {
	expr, names, values := updateExpression(m)
	input := &ddb.UpdateItemInput{
		TableName:                aws.String(b.table),
		Key:                      b.key(m),
		UpdateExpression:         aws.String(expr),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}
	if len(m.Put) == 0 {
		input.ReturnValues = types.ReturnValueAllNew
	}
	out, err := b.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update %s: %w", sortKey(m.Chromosome, m.BatchStart), err)
	}
	if len(m.Put) > 0 || len(out.Attributes) > 2 {
		return nil
	}
	_, err = b.client.DeleteItem(ctx, &ddb.DeleteItemInput{
		TableName: aws.String(b.table),
		Key:       b.key(m),
	})
	return err
}

// updateExpression builds "SET #p0 = :v0, ... REMOVE #r0, ...". A column
// that is both deleted and put is only set, DynamoDB rejects overlapping
// paths.
func updateExpression(m *entry.Mutation) (string, map[string]string, map[string]types.AttributeValue) {
	names := make(map[string]string, len(m.Put)+len(m.Delete))
	values := make(map[string]types.AttributeValue, len(m.Put))

	var sb strings.Builder
	for i, name := range m.Put.Names() {
		if i == 0 {
			sb.WriteString("SET ")
		} else {
			sb.WriteString(", ")
		}
		n, v := "#p"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
		names[n] = name
		values[v] = &types.AttributeValueMemberB{Value: m.Put[name]}
		sb.WriteString(n + " = " + v)
	}

	removed := 0
	for _, name := range slices.Compact(slices.Sorted(slices.Values(m.Delete))) {
		if _, ok := m.Put[name]; ok {
			continue
		}
		if removed == 0 {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString("REMOVE ")
		} else {
			sb.WriteString(", ")
		}
		n := "#r" + strconv.Itoa(removed)
		names[n] = name
		sb.WriteString(n)
		removed++
	}
	return sb.String(), names, values
}

// Close implements store.Backend. The client is not closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
