package entry

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sampleidx/schema"
)

// Column prefixes. Per genotype columns are named prefix+genotype; the
// variants column is the bare genotype.
const (
	PrefixCount               = "_C_"
	PrefixAnnotation          = "_A_"
	PrefixAnnotationCounts    = "_AC_"
	PrefixConsequenceType     = "_CT_"
	PrefixBiotype             = "_BT_"
	PrefixTranscriptFlag      = "_TF_"
	PrefixCtBtTf              = "_CBT_"
	PrefixPopulationFrequency = "_PF_"
	PrefixClinical            = "_CL_"
	PrefixFileIndex           = "_F_"
	PrefixFileData            = "_FD_"
	PrefixParents             = "_PA_"
	PrefixMendelian           = "_ME_"

	ColumnDiscrepancies = "_DC_"
	ColumnSchemaVersion = "_V_"
)

// genotypePrefixes lists every per genotype prefix, longest first so that
// parsing never confuses _A_ with _AC_.
var genotypePrefixes = func() []string {
	p := []string{
		PrefixCount, PrefixAnnotation, PrefixAnnotationCounts, PrefixConsequenceType,
		PrefixBiotype, PrefixTranscriptFlag, PrefixCtBtTf, PrefixPopulationFrequency,
		PrefixClinical, PrefixFileIndex, PrefixFileData, PrefixParents, PrefixMendelian,
	}
	sort.Slice(p, func(i, j int) bool { return len(p[i]) > len(p[j]) })
	return p
}()

// annotationPrefixes are removed together when a genotype loses its annotation.
var annotationPrefixes = []string{
	PrefixAnnotation, PrefixAnnotationCounts, PrefixConsequenceType, PrefixBiotype,
	PrefixTranscriptFlag, PrefixCtBtTf, PrefixPopulationFrequency, PrefixClinical,
}

// Columns maps column names to values.
type Columns map[string][]byte

// Names returns the column names in lexical order.
func (c Columns) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Mutation replaces the columns of one row. Delete is applied before Put.
type Mutation struct {
	SampleID   int
	Chromosome string
	BatchStart int
	Put        Columns
	Delete     []string
}

// Empty reports whether the mutation changes nothing.
func (m *Mutation) Empty() bool { return len(m.Put) == 0 && len(m.Delete) == 0 }

// EncodeColumns flattens e into columns.
func EncodeColumns(e *SampleIndexEntry) (Columns, error) {
	cols := make(Columns, len(e.Gts)*6+2)
	cols[ColumnSchemaVersion] = binary.AppendUvarint(nil, uint64(e.SchemaVersion))
	if e.Discrepancies > 0 {
		cols[ColumnDiscrepancies] = binary.AppendUvarint(nil, uint64(e.Discrepancies))
	}
	for gt, g := range e.Gts {
		if err := g.appendColumns(gt, cols); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func (g *GtEntry) appendColumns(gt string, cols Columns) error {
	cols[gt] = g.Variants
	cols[PrefixCount+gt] = binary.AppendUvarint(nil, uint64(g.Count))
	cols[PrefixFileIndex+gt] = g.FileIndex
	putIfSet(cols, PrefixFileData+gt, g.FileData)
	if g.Annotated() {
		cols[PrefixAnnotation+gt] = g.AnnotationIndex
		var counts []byte
		for _, c := range g.AnnotationCounts {
			counts = binary.AppendUvarint(counts, uint64(c))
		}
		cols[PrefixAnnotationCounts+gt] = counts
		putIfSet(cols, PrefixConsequenceType+gt, g.ConsequenceTypeIndex)
		putIfSet(cols, PrefixBiotype+gt, g.BiotypeIndex)
		putIfSet(cols, PrefixTranscriptFlag+gt, g.TranscriptFlagIndex)
		putIfSet(cols, PrefixCtBtTf+gt, g.CtBtTfIndex)
		putIfSet(cols, PrefixPopulationFrequency+gt, g.PopulationFrequencyIndex)
		putIfSet(cols, PrefixClinical+gt, g.ClinicalIndex)
	}
	putIfSet(cols, PrefixParents+gt, g.ParentsIndex)
	if g.MendelianErrors != nil && !g.MendelianErrors.IsEmpty() {
		b, err := g.MendelianErrors.ToBytes()
		if err != nil {
			return fmt.Errorf("encode mendelian errors of %s: %w", gt, err)
		}
		cols[PrefixMendelian+gt] = b
	}
	return nil
}

func putIfSet(cols Columns, name string, v []byte) {
	if len(v) > 0 {
		cols[name] = v
	}
}

// SplitColumn returns the prefix and genotype of a per genotype column. Entry
// wide columns return ok=false.
func SplitColumn(name string) (prefix, gt string, ok bool) {
	if name == ColumnDiscrepancies || name == ColumnSchemaVersion {
		return "", "", false
	}
	for _, p := range genotypePrefixes {
		if strings.HasPrefix(name, p) {
			return p, name[len(p):], true
		}
	}
	return "", name, true
}

// DecodeColumns rebuilds an entry from its columns.
func DecodeColumns(sampleID int, chromosome string, batchStart int, cols Columns) (*SampleIndexEntry, error) {
	e := NewSampleIndexEntry(sampleID, chromosome, batchStart, 0)
	gtOf := func(gt string) *GtEntry {
		g, ok := e.Gts[gt]
		if !ok {
			g = &GtEntry{Gt: gt}
			e.Gts[gt] = g
		}
		return g
	}
	for name, v := range cols {
		switch name {
		case ColumnSchemaVersion:
			n, err := uvarint(name, v)
			if err != nil {
				return nil, err
			}
			e.SchemaVersion = n
			continue
		case ColumnDiscrepancies:
			n, err := uvarint(name, v)
			if err != nil {
				return nil, err
			}
			e.Discrepancies = n
			continue
		}
		prefix, gt, _ := SplitColumn(name)
		g := gtOf(gt)
		switch prefix {
		case "":
			g.Variants = v
		case PrefixCount:
			n, err := uvarint(name, v)
			if err != nil {
				return nil, err
			}
			g.Count = n
		case PrefixFileIndex:
			g.FileIndex = v
		case PrefixFileData:
			g.FileData = v
		case PrefixAnnotation:
			g.AnnotationIndex = v
		case PrefixAnnotationCounts:
			counts, err := uvarints(name, v)
			if err != nil {
				return nil, err
			}
			g.AnnotationCounts = counts
		case PrefixConsequenceType:
			g.ConsequenceTypeIndex = v
		case PrefixBiotype:
			g.BiotypeIndex = v
		case PrefixTranscriptFlag:
			g.TranscriptFlagIndex = v
		case PrefixCtBtTf:
			g.CtBtTfIndex = v
		case PrefixPopulationFrequency:
			g.PopulationFrequencyIndex = v
		case PrefixClinical:
			g.ClinicalIndex = v
		case PrefixParents:
			g.ParentsIndex = v
		case PrefixMendelian:
			bm := roaring.New()
			if err := bm.UnmarshalBinary(v); err != nil {
				return nil, fmt.Errorf("%w: column %s: %w", ErrCorrupted, name, err)
			}
			g.MendelianErrors = bm
		}
	}
	for gt, g := range e.Gts {
		if g.Variants == nil {
			return nil, fmt.Errorf("%w: genotype %s has columns but no variants", ErrCorrupted, gt)
		}
	}
	return e, nil
}

func uvarint(name string, v []byte) (int, error) {
	n, k := binary.Uvarint(v)
	if k <= 0 {
		return 0, fmt.Errorf("%w: column %s is not a varint", ErrCorrupted, name)
	}
	return int(n), nil
}

func uvarints(name string, v []byte) ([]int, error) {
	out := make([]int, 0, len(schema.SummaryBits))
	for len(v) > 0 {
		n, k := binary.Uvarint(v)
		if k <= 0 {
			return nil, fmt.Errorf("%w: column %s is not a varint list", ErrCorrupted, name)
		}
		out = append(out, int(n))
		v = v[k:]
	}
	return out, nil
}
