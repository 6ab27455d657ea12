package entry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
)

var (
	// ErrBuilt is returned when adding to a builder that already built.
	ErrBuilt = errors.New("sample index builder already built")
	// ErrUnorderedInput is returned when an ordered builder receives a variant
	// before its predecessor.
	ErrUnorderedInput = errors.New("variants added out of order")
	// ErrMultipleBatches is returned by Build when the builder spans more than one batch.
	ErrMultipleBatches = errors.New("builder spans more than one batch")
	// ErrEmpty is returned by Build when nothing was added.
	ErrEmpty = errors.New("sample index builder is empty")
)

type batchKey struct {
	chromosome string
	start      int
}

type chunkKey struct {
	batch batchKey
	gt    string
}

// chunk collects the variants of one genotype in one batch. It is owned by
// the builder until finalized.
type chunk struct {
	variants []SampleIndexVariant
	pos      map[variant.Variant]int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithOrderedInput declares that variants are added in genomic order, which
// skips the sort step at build time.
func WithOrderedInput() BuilderOption {
	return func(b *Builder) { b.orderedInput = true }
}

// WithLogger sets the logger used for build time debug output.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// Builder accumulates the variants of one sample and produces entries.
//
// Builder is not safe for concurrent use.
type Builder struct {
	schema       *schema.SampleIndexSchema
	sampleID     int
	orderedInput bool
	logger       *slog.Logger

	chunks  map[chunkKey]*chunk
	merging map[batchKey]*SampleIndexEntry
	built   map[batchKey]*SampleIndexEntry
	isBuilt bool
	skipped int
}

// NewBuilder returns a builder for sampleID.
func NewBuilder(s *schema.SampleIndexSchema, sampleID int, opts ...BuilderOption) *Builder {
	b := &Builder{
		schema:   s,
		sampleID: sampleID,
		chunks:   make(map[chunkKey]*chunk),
		merging:  make(map[batchKey]*SampleIndexEntry),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SampleID returns the sample the builder writes.
func (b *Builder) SampleID() int { return b.sampleID }

// Skipped returns how many variants were ignored because their genotype is
// not indexable.
func (b *Builder) Skipped() int { return b.skipped }

// Add assigns v to genotype gt in the batch covering its start. Variants with
// non indexable genotypes are ignored. Adding the same variant twice under
// one genotype appends its file index entries.
func (b *Builder) Add(gt string, v SampleIndexVariant) error {
	if b.isBuilt {
		return ErrBuilt
	}
	if !schema.IsIndexable(gt) && gt != MixedGenotype {
		b.skipped++
		return nil
	}
	v.Genotype = gt
	key := chunkKey{batch: batchKey{v.Variant.Chromosome, variant.BatchStart(v.Variant.Start)}, gt: gt}
	c := b.chunks[key]
	if c == nil {
		c = &chunk{pos: make(map[variant.Variant]int)}
		b.chunks[key] = c
	}
	if i, ok := c.pos[v.Variant]; ok {
		prev := &c.variants[i]
		prev.FileIndex = append(prev.FileIndex, v.FileIndex...)
		prev.FileData = append(prev.FileData, v.FileData...)
		prev.MendelianError = prev.MendelianError || v.MendelianError
		if prev.Annotation == nil {
			prev.Annotation = v.Annotation
		}
		return nil
	}
	if b.orderedInput && len(c.variants) > 0 {
		if last := c.variants[len(c.variants)-1].Variant; variant.Compare(last, v.Variant) > 0 {
			return fmt.Errorf("%w: %s after %s", ErrUnorderedInput, v.Variant, last)
		}
	}
	c.pos[v.Variant] = len(c.variants)
	c.variants = append(c.variants, v)
	return nil
}

// Merge loads an existing entry so that new variants are combined with the
// stored ones. Genotypes of the entry are rewritten and their stale columns
// deleted by Mutations.
func (b *Builder) Merge(existing *SampleIndexEntry) error {
	if b.isBuilt {
		return ErrBuilt
	}
	if existing.SampleID != b.sampleID {
		return fmt.Errorf("merge entry of sample %d into builder of sample %d", existing.SampleID, b.sampleID)
	}
	if err := b.schema.CheckVersion(existing.SchemaVersion); err != nil {
		return err
	}
	key := batchKey{existing.Chromosome, existing.BatchStart}
	b.merging[key] = existing

	ordered := b.orderedInput
	b.orderedInput = false
	defer func() { b.orderedInput = ordered }()

	for _, gt := range existing.Genotypes() {
		c, err := NewCursor(b.schema, existing, gt)
		if err != nil {
			return err
		}
		for c.Next() {
			v, err := c.SampleIndexVariant()
			if err != nil {
				return err
			}
			if err := b.Add(gt, v); err != nil {
				return err
			}
		}
		if err := c.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Merging returns the genotypes of the merged entry of a batch.
func (b *Builder) Merging(chromosome string, batchStart int) []string {
	e, ok := b.merging[batchKey{chromosome, batchStart}]
	if !ok {
		return nil
	}
	return e.Genotypes()
}

// BuildAll finalizes every batch, ordered by chromosome and batch start.
func (b *Builder) BuildAll() ([]*SampleIndexEntry, error) {
	if !b.isBuilt {
		if err := b.finalize(); err != nil {
			return nil, err
		}
	}
	keys := make([]batchKey, 0, len(b.built))
	for k := range b.built {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y batchKey) int {
		if c := variant.CompareChromosome(x.chromosome, y.chromosome); c != 0 {
			return c
		}
		return x.start - y.start
	})
	out := make([]*SampleIndexEntry, len(keys))
	for i, k := range keys {
		out[i] = b.built[k]
	}
	return out, nil
}

// Build finalizes a builder holding a single batch.
func (b *Builder) Build() (*SampleIndexEntry, error) {
	entries, err := b.BuildAll()
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, ErrEmpty
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("%w: %d batches", ErrMultipleBatches, len(entries))
	}
}

func (b *Builder) finalize() error {
	b.built = make(map[batchKey]*SampleIndexEntry)
	for key, c := range b.chunks {
		e := b.built[key.batch]
		if e == nil {
			e = NewSampleIndexEntry(b.sampleID, key.batch.chromosome, key.batch.start, b.schema.Version())
			b.built[key.batch] = e
		}
		if !b.orderedInput || b.merging[key.batch] != nil {
			slices.SortStableFunc(c.variants, func(x, y SampleIndexVariant) int {
				return variant.Compare(x.Variant, y.Variant)
			})
		}
		g, err := EncodeGtEntry(b.schema, key.gt, c.variants)
		if err != nil {
			return err
		}
		if n := unannotated(c.variants); n > 0 && n < len(c.variants) {
			b.logger.Debug("dropping annotation columns of partially annotated genotype",
				slog.Int("sample", b.sampleID),
				slog.String("chromosome", key.batch.chromosome),
				slog.Int("batch", key.batch.start),
				slog.String("genotype", key.gt),
				slog.Int("unannotated", n),
				slog.Int("variants", len(c.variants)),
			)
		}
		e.Gts[key.gt] = g
	}
	for key, e := range b.built {
		e.Discrepancies = b.discrepancies(key)
	}
	for key := range b.merging {
		if _, ok := b.built[key]; !ok {
			b.built[key] = NewSampleIndexEntry(b.sampleID, key.chromosome, key.start, b.schema.Version())
		}
	}
	b.chunks = nil
	b.isBuilt = true
	return nil
}

func unannotated(vs []SampleIndexVariant) int {
	n := 0
	for _, v := range vs {
		if v.Annotation == nil {
			n++
		}
	}
	return n
}

// discrepancies counts the extra genotypes of variants stored more than once.
func (b *Builder) discrepancies(key batchKey) int {
	seen := make(map[variant.Variant]int)
	for ck, c := range b.chunks {
		if ck.batch != key {
			continue
		}
		for _, v := range c.variants {
			seen[v.Variant]++
		}
	}
	n := 0
	for _, count := range seen {
		n += count - 1
	}
	return n
}

// Mutations returns, per batch, the columns to write and the stale columns of
// merged genotypes to delete.
func (b *Builder) Mutations() ([]Mutation, error) {
	entries, err := b.BuildAll()
	if err != nil {
		return nil, err
	}
	out := make([]Mutation, 0, len(entries))
	for _, e := range entries {
		cols, err := EncodeColumns(e)
		if err != nil {
			return nil, err
		}
		m := Mutation{SampleID: e.SampleID, Chromosome: e.Chromosome, BatchStart: e.BatchStart, Put: cols}
		if old, ok := b.merging[batchKey{e.Chromosome, e.BatchStart}]; ok {
			m.Delete, err = staleColumns(old, cols)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// staleColumns lists the columns of old that the new columns do not overwrite.
func staleColumns(old *SampleIndexEntry, cols Columns) ([]string, error) {
	oldCols, err := EncodeColumns(old)
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, name := range oldCols.Names() {
		if _, ok := cols[name]; !ok {
			stale = append(stale, name)
		}
	}
	return stale, nil
}
