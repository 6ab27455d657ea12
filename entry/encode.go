package entry

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
)

// EncodeGtEntry encodes variants, already in genomic order, as the columns of
// genotype gt. Annotation columns are written only when every variant is
// annotated; a single unannotated variant, for example one merged into an
// annotated batch, leaves the genotype without annotation columns and
// annotation filters then pass all of its variants. Builder reports this at
// debug level.
func EncodeGtEntry(s *schema.SampleIndexSchema, gt string, vs []SampleIndexVariant) (*GtEntry, error) {
	g := &GtEntry{Gt: gt, Count: len(vs)}

	plain := make([]variant.Variant, len(vs))
	for i, v := range vs {
		plain[i] = v.Variant
	}
	g.Variants = variant.EncodeVariants(plain)

	fileIndex, fileData, err := encodeFileIndex(s.FileIndex(), vs)
	if err != nil {
		return nil, err
	}
	g.FileIndex = fileIndex
	g.FileData = fileData

	annotated := len(vs) > 0
	hasParents := false
	for _, v := range vs {
		annotated = annotated && v.Annotation != nil
		hasParents = hasParents || v.HasParents
	}
	if annotated {
		if err := encodeAnnotation(s, g, vs); err != nil {
			return nil, err
		}
	}
	if hasParents {
		g.ParentsIndex = make([]byte, len(vs))
		for i, v := range vs {
			g.ParentsIndex[i] = v.Parents
		}
	}
	for i, v := range vs {
		if v.MendelianError {
			if g.MendelianErrors == nil {
				g.MendelianErrors = roaring.New()
			}
			g.MendelianErrors.Add(uint32(i))
		}
	}
	return g, nil
}

func encodeFileIndex(fi *schema.FileIndexSchema, vs []SampleIndexVariant) ([]byte, []byte, error) {
	out := bitio.NewBitOutputStream(len(vs) * fi.BitLength())
	hasData := false
	for _, v := range vs {
		hasData = hasData || len(v.FileData) > 0
	}
	var data []byte
	for _, v := range vs {
		if len(v.FileIndex) == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingFileIndex, v.Variant)
		}
		for i, buf := range v.FileIndex {
			if buf.BitLength() != fi.BitLength() {
				return nil, nil, fmt.Errorf("%w: file index of %s has %d bits, want %d", ErrCorrupted, v.Variant, buf.BitLength(), fi.BitLength())
			}
			b := buf.Clone()
			if err := fi.SetMultiFile(b, i < len(v.FileIndex)-1); err != nil {
				return nil, nil, err
			}
			if err := out.WriteBuffer(b); err != nil {
				return nil, nil, err
			}
			if hasData {
				var blob []byte
				if i < len(v.FileData) {
					blob = v.FileData[i]
				}
				data = binary.AppendUvarint(data, uint64(len(blob)))
				data = append(data, blob...)
			}
		}
	}
	return out.Bytes(), data, nil
}

func encodeAnnotation(s *schema.SampleIndexSchema, g *GtEntry, vs []SampleIndexVariant) error {
	ct, bt, tf := s.ConsequenceType(), s.Biotype(), s.TranscriptFlag()
	ctOut := bitio.NewBitOutputStream(len(vs) * ct.BitLength())
	btOut := bitio.NewBitOutputStream(len(vs) * bt.BitLength())
	tfOut := bitio.NewBitOutputStream(len(vs) * tf.BitLength())
	cbtOut := bitio.NewBitOutputStream(0)
	pfOut := bitio.NewBitOutputStream(len(vs) * s.PopulationFrequency().BitLength())
	clOut := bitio.NewBitOutputStream(0)

	g.AnnotationIndex = make([]byte, len(vs))
	g.AnnotationCounts = make([]int, len(schema.SummaryBits))
	nonIntergenic := 0
	for i, v := range vs {
		a := v.Annotation
		g.AnnotationIndex[i] = a.Summary
		for b := range schema.SummaryBits {
			if a.Summary&(1<<b) != 0 {
				g.AnnotationCounts[b]++
			}
		}
		if !a.Intergenic() {
			nonIntergenic++
			if err := ct.Write(a.ConsequenceType, ctOut); err != nil {
				return err
			}
			if err := bt.Write(a.Biotype, btOut); err != nil {
				return err
			}
			if err := tf.Write(a.TranscriptFlag, tfOut); err != nil {
				return err
			}
			if a.HasCtBtTf() {
				want := s.CtBtTf().BitLength(a.ConsequenceType, a.Biotype, a.TranscriptFlag)
				if a.CtBtTf == nil || a.CtBtTf.BitLength() != want {
					return fmt.Errorf("%w: ct/bt/tf matrix of %s does not match its codes", ErrCorrupted, v.Variant)
				}
				if err := cbtOut.WriteBuffer(a.CtBtTf); err != nil {
					return err
				}
			}
		}
		if err := s.PopulationFrequency().Write(a.PopFreq, pfOut); err != nil {
			return err
		}
		if a.HasClinical() {
			if err := s.Clinical().Write(a.ClinicalSource, a.ClinicalSignificance, clOut); err != nil {
				return err
			}
		}
	}
	if nonIntergenic > 0 {
		g.ConsequenceTypeIndex = ctOut.Bytes()
		g.BiotypeIndex = btOut.Bytes()
		g.TranscriptFlagIndex = tfOut.Bytes()
		g.CtBtTfIndex = cbtOut.Bytes()
	}
	g.PopulationFrequencyIndex = pfOut.Bytes()
	g.ClinicalIndex = clOut.Bytes()
	return nil
}
