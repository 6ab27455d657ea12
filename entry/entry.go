package entry

import (
	"errors"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
)

var (
	// ErrMissingFileIndex is returned when a variant carries no file index entry.
	ErrMissingFileIndex = errors.New("variant without file index")
	// ErrCorrupted is returned when columns are inconsistent with each other.
	ErrCorrupted = errors.New("corrupted sample index entry")
)

// MixedGenotype is the pseudo genotype of variants whose genotype differs
// between the files of a sample.
const MixedGenotype = "MIXED"

// SampleIndexEntry is one row: a sample, a chromosome and a batch.
type SampleIndexEntry struct {
	SampleID      int
	Chromosome    string
	BatchStart    int
	SchemaVersion int
	Gts           map[string]*GtEntry
	// Discrepancies counts variants stored under more than one genotype.
	Discrepancies int
}

// NewSampleIndexEntry returns an empty entry.
func NewSampleIndexEntry(sampleID int, chromosome string, batchStart, schemaVersion int) *SampleIndexEntry {
	return &SampleIndexEntry{
		SampleID:      sampleID,
		Chromosome:    chromosome,
		BatchStart:    batchStart,
		SchemaVersion: schemaVersion,
		Gts:           make(map[string]*GtEntry),
	}
}

// Genotypes returns the stored genotypes in lexical order.
func (e *SampleIndexEntry) Genotypes() []string {
	gts := make([]string, 0, len(e.Gts))
	for gt := range e.Gts {
		gts = append(gts, gt)
	}
	slices.Sort(gts)
	return gts
}

// Count returns the number of variants over the given genotypes, or over all
// genotypes when none are given.
func (e *SampleIndexEntry) Count(gts ...string) int {
	n := 0
	for gt, g := range e.Gts {
		if len(gts) == 0 || slices.Contains(gts, gt) {
			n += g.Count
		}
	}
	return n
}

// Region returns the genomic window covered by the entry.
func (e *SampleIndexEntry) Region() variant.Region {
	return variant.Region{Chromosome: e.Chromosome, Start: e.BatchStart, End: e.BatchStart + variant.BatchSize - 1}
}

// GtEntry holds the encoded columns of one genotype.
type GtEntry struct {
	Gt    string
	Count int

	Variants  []byte
	FileIndex []byte
	// FileData is optional. When present it holds one length-prefixed blob per
	// file index entry.
	FileData []byte

	// Annotation columns are all nil when the variants are not annotated.
	AnnotationIndex          []byte
	AnnotationCounts         []int
	ConsequenceTypeIndex     []byte
	BiotypeIndex             []byte
	TranscriptFlagIndex      []byte
	CtBtTfIndex              []byte
	PopulationFrequencyIndex []byte
	ClinicalIndex            []byte

	// ParentsIndex is optional and holds one byte per variant.
	ParentsIndex    []byte
	MendelianErrors *roaring.Bitmap
}

// Annotated reports whether annotation columns are present.
func (g *GtEntry) Annotated() bool { return g.AnnotationIndex != nil }

// AnnotationCount returns how many variants have the summary bit mask set.
// mask must have a single bit.
func (g *GtEntry) AnnotationCount(mask byte) (int, bool) {
	if g.AnnotationCounts == nil || mask == 0 || mask&(mask-1) != 0 {
		return 0, false
	}
	for i := range g.AnnotationCounts {
		if mask == 1<<i {
			return g.AnnotationCounts[i], true
		}
	}
	return 0, false
}

// SampleIndexVariant is a fully decoded variant of an entry.
type SampleIndexVariant struct {
	Variant  variant.Variant
	Genotype string
	// FileIndex holds one entry per file the variant was seen in.
	FileIndex []*bitio.BitBuffer
	// FileData is optional and aligned with FileIndex.
	FileData   [][]byte
	Annotation *schema.AnnotationIndexEntry

	Parents        byte
	HasParents     bool
	MendelianError bool
}

// String renders the variant.
func (v SampleIndexVariant) String() string { return v.Variant.String() }
