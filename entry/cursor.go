package entry

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
)

// Cursor walks the variants of one genotype, keeping every column in
// lock-step. Annotation sub indexes are only materialized on demand.
//
// A Cursor is forward only and not safe for concurrent use.
type Cursor struct {
	schema     *schema.SampleIndexSchema
	gt         *GtEntry
	chromosome string
	batchStart int

	variants []byte
	fileIn   *bitio.BitInputStream
	fileData []byte

	ct, bt, tf, pf, cl *bitio.BitBuffer
	cbt                *bitio.BitBuffer
	cbtOffset          int

	idx           int
	nonIntergenic int
	clinical      int

	cur       variant.Variant
	fileIndex []*bitio.BitBuffer
	data      [][]byte
	summary   byte
	// positions of the current variant in the annotation streams, -1 if absent
	curNonIntergenic int
	curClinical      int
	curCbtOffset     int
	annotation       *schema.AnnotationIndexEntry

	err error
}

// NewCursor returns a cursor over genotype gt of e. The entry must have been
// written with schema s.
func NewCursor(s *schema.SampleIndexSchema, e *SampleIndexEntry, gt string) (*Cursor, error) {
	if err := s.CheckVersion(e.SchemaVersion); err != nil {
		return nil, err
	}
	g, ok := e.Gts[gt]
	if !ok {
		g = &GtEntry{Gt: gt}
	}
	c := &Cursor{
		schema:     s,
		gt:         g,
		chromosome: e.Chromosome,
		batchStart: e.BatchStart,
		variants:   g.Variants,
		fileIn:     bitio.NewBitInputStream(g.FileIndex),
		fileData:   g.FileData,
		idx:        -1,
	}
	if g.Annotated() {
		c.ct = bitio.WrapBitBuffer(g.ConsequenceTypeIndex)
		c.bt = bitio.WrapBitBuffer(g.BiotypeIndex)
		c.tf = bitio.WrapBitBuffer(g.TranscriptFlagIndex)
		c.cbt = bitio.WrapBitBuffer(g.CtBtTfIndex)
		c.pf = bitio.WrapBitBuffer(g.PopulationFrequencyIndex)
		c.cl = bitio.WrapBitBuffer(g.ClinicalIndex)
	}
	return c, nil
}

// Genotype returns the genotype being walked.
func (c *Cursor) Genotype() string { return c.gt.Gt }

// Count returns the number of variants of the genotype.
func (c *Cursor) Count() int { return c.gt.Count }

// Next advances to the next variant. It returns false at the end or on error.
func (c *Cursor) Next() bool {
	if c.err != nil || len(c.variants) < 3 {
		return false
	}
	v, n, err := variant.DecodeVariant(c.chromosome, c.batchStart, c.variants)
	if err != nil {
		c.err = err
		return false
	}
	c.variants = c.variants[n:]
	c.idx++
	c.cur = v
	c.annotation = nil
	if err := c.readFileIndex(); err != nil {
		c.err = fmt.Errorf("%s file index: %w", v, err)
		return false
	}
	if c.gt.Annotated() {
		if err := c.advanceAnnotation(); err != nil {
			c.err = fmt.Errorf("%s annotation: %w", v, err)
			return false
		}
	}
	return true
}

func (c *Cursor) readFileIndex() error {
	fi := c.schema.FileIndex()
	c.fileIndex = c.fileIndex[:0:0]
	c.data = nil
	for {
		buf, err := c.fileIn.ReadBuffer(fi.BitLength())
		if err != nil {
			return err
		}
		c.fileIndex = append(c.fileIndex, buf)
		if c.fileData != nil {
			n, k := binary.Uvarint(c.fileData)
			if k <= 0 || int(n) > len(c.fileData)-k {
				return fmt.Errorf("%w: truncated file data", ErrCorrupted)
			}
			c.data = append(c.data, c.fileData[k:k+int(n)])
			c.fileData = c.fileData[k+int(n):]
		}
		multi, err := fi.IsMultiFile(buf)
		if err != nil {
			return err
		}
		if !multi {
			return nil
		}
	}
}

func (c *Cursor) advanceAnnotation() error {
	if c.idx >= len(c.gt.AnnotationIndex) {
		return fmt.Errorf("%w: annotation index has %d entries", ErrCorrupted, len(c.gt.AnnotationIndex))
	}
	c.summary = c.gt.AnnotationIndex[c.idx]
	c.curNonIntergenic, c.curClinical, c.curCbtOffset = -1, -1, -1
	if c.summary&schema.IntergenicMask == 0 {
		c.curNonIntergenic = c.nonIntergenic
		c.nonIntergenic++
		ct, bt, tf, err := c.codes(c.curNonIntergenic)
		if err != nil {
			return err
		}
		if ct != 0 && bt != 0 {
			c.curCbtOffset = c.cbtOffset
			c.cbtOffset += c.schema.CtBtTf().BitLength(ct, bt, tf)
		}
	}
	if c.summary&schema.ClinicalMask != 0 {
		c.curClinical = c.clinical
		c.clinical++
	}
	return nil
}

func (c *Cursor) codes(i int) (ct, bt, tf int, err error) {
	s := c.schema
	if ct, err = readCode(c.ct, i, s.ConsequenceType().BitLength()); err != nil {
		return
	}
	if bt, err = readCode(c.bt, i, s.Biotype().BitLength()); err != nil {
		return
	}
	tf, err = readCode(c.tf, i, s.TranscriptFlag().BitLength())
	return
}

func readCode(buf *bitio.BitBuffer, i, width int) (int, error) {
	if width == 0 {
		return 0, nil
	}
	v, err := buf.GetBits(i*width, width)
	return int(v), err
}

// Err returns the first error met by Next.
func (c *Cursor) Err() error { return c.err }

// Index returns the position of the current variant within the genotype.
func (c *Cursor) Index() int { return c.idx }

// Variant returns the current variant.
func (c *Cursor) Variant() variant.Variant { return c.cur }

// FileIndex returns the file index entries of the current variant.
func (c *Cursor) FileIndex() []*bitio.BitBuffer { return c.fileIndex }

// FileData returns the file data of the current variant, if stored.
func (c *Cursor) FileData() [][]byte { return c.data }

// HasAnnotation reports whether annotation columns are available.
func (c *Cursor) HasAnnotation() bool { return c.gt.Annotated() }

// Summary returns the annotation summary byte of the current variant.
func (c *Cursor) Summary() byte { return c.summary }

// Annotation decodes the annotation of the current variant. It returns nil
// when the genotype is not annotated.
func (c *Cursor) Annotation() (*schema.AnnotationIndexEntry, error) {
	if !c.gt.Annotated() {
		return nil, nil
	}
	if c.annotation != nil {
		return c.annotation, nil
	}
	s := c.schema
	a := &schema.AnnotationIndexEntry{Summary: c.summary}
	var err error
	if c.curNonIntergenic >= 0 {
		if a.ConsequenceType, a.Biotype, a.TranscriptFlag, err = c.codes(c.curNonIntergenic); err != nil {
			return nil, err
		}
		if c.curCbtOffset >= 0 {
			n := s.CtBtTf().BitLength(a.ConsequenceType, a.Biotype, a.TranscriptFlag)
			in := bitio.NewBitInputStream(c.cbt.Bytes())
			if err = in.Skip(c.curCbtOffset); err != nil {
				return nil, err
			}
			if a.CtBtTf, err = in.ReadBuffer(n); err != nil {
				return nil, err
			}
		}
	}
	pfBits := s.PopulationFrequency().BitLength()
	pfIn := bitio.NewBitInputStream(c.pf.Bytes())
	if err = pfIn.Skip(c.idx * pfBits); err != nil {
		return nil, err
	}
	if a.PopFreq, err = s.PopulationFrequency().Read(pfIn); err != nil {
		return nil, err
	}
	if c.curClinical >= 0 {
		clIn := bitio.NewBitInputStream(c.cl.Bytes())
		if err = clIn.Skip(c.curClinical * s.Clinical().BitLength()); err != nil {
			return nil, err
		}
		if a.ClinicalSource, a.ClinicalSignificance, err = s.Clinical().Read(clIn); err != nil {
			return nil, err
		}
	}
	c.annotation = a
	return a, nil
}

// Parents returns the parents code of the current variant.
func (c *Cursor) Parents() (byte, bool) {
	if c.gt.ParentsIndex == nil || c.idx >= len(c.gt.ParentsIndex) {
		return 0, false
	}
	return c.gt.ParentsIndex[c.idx], true
}

// MendelianError reports whether the current variant is a mendelian error.
func (c *Cursor) MendelianError() bool {
	return c.gt.MendelianErrors != nil && c.gt.MendelianErrors.Contains(uint32(c.idx))
}

// SampleIndexVariant materializes the current variant.
func (c *Cursor) SampleIndexVariant() (SampleIndexVariant, error) {
	a, err := c.Annotation()
	if err != nil {
		return SampleIndexVariant{}, err
	}
	parents, hasParents := c.Parents()
	return SampleIndexVariant{
		Variant:        c.cur,
		Genotype:       c.gt.Gt,
		FileIndex:      c.fileIndex,
		FileData:       c.data,
		Annotation:     a,
		Parents:        parents,
		HasParents:     hasParents,
		MendelianError: c.MendelianError(),
	}, nil
}
