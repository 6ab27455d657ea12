package schema

import (
	"fmt"
	"strings"

	"github.com/hupe1980/sampleidx/internal/bitio"
)

// Summary bits of the one-byte annotation index.
const (
	IntergenicMask          byte = 1 << 0
	LofMask                 byte = 1 << 1
	LofExtendedMask         byte = 1 << 2
	LofeProteinCodingMask   byte = 1 << 3
	PopFreqAny001Mask       byte = 1 << 4
	ClinicalMask            byte = 1 << 5
	ProteinCodingMask       byte = 1 << 6
	TranscriptFlagBasicMask byte = 1 << 7
)

// SummaryBits names the summary bits in bit order.
var SummaryBits = [8]string{
	"INTERGENIC",
	"LOF",
	"LOF_EXTENDED",
	"LOFE_PROTEIN_CODING",
	"POP_FREQ_ANY_001",
	"CLINICAL",
	"PROTEIN_CODING",
	"TRANSCRIPT_FLAG_BASIC",
}

// PopFreqAny001Threshold is the frequency below which a summarized population
// sets the POP_FREQ_ANY_001 bit.
const PopFreqAny001Threshold = 0.001

// AnnotationIndexEntry is the encoded annotation of one variant.
type AnnotationIndexEntry struct {
	Summary byte `json:"summary"`

	// Consequence type, biotype and transcript flag codes. Only present for
	// non intergenic variants.
	ConsequenceType int `json:"ct,omitempty"`
	Biotype         int `json:"bt,omitempty"`
	TranscriptFlag  int `json:"tf,omitempty"`
	// CtBtTf is the combination matrix. Present when both ConsequenceType
	// and Biotype are non zero.
	CtBtTf *bitio.BitBuffer `json:"-"`

	// PopFreq holds one range code per configured population.
	PopFreq []int `json:"popFreq"`

	ClinicalSource       int `json:"clinicalSource,omitempty"`
	ClinicalSignificance int `json:"clinicalSignificance,omitempty"`
}

// Intergenic reports whether the INTERGENIC bit is set.
func (e *AnnotationIndexEntry) Intergenic() bool { return e.Summary&IntergenicMask != 0 }

// HasClinical reports whether the CLINICAL bit is set.
func (e *AnnotationIndexEntry) HasClinical() bool { return e.Summary&ClinicalMask != 0 }

// HasCtBtTf reports whether a combination matrix is stored for the entry.
func (e *AnnotationIndexEntry) HasCtBtTf() bool {
	return !e.Intergenic() && e.ConsequenceType != 0 && e.Biotype != 0
}

// Equal compares two entries including the combination matrix.
func (e *AnnotationIndexEntry) Equal(o *AnnotationIndexEntry) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Summary != o.Summary ||
		e.ConsequenceType != o.ConsequenceType ||
		e.Biotype != o.Biotype ||
		e.TranscriptFlag != o.TranscriptFlag ||
		e.ClinicalSource != o.ClinicalSource ||
		e.ClinicalSignificance != o.ClinicalSignificance ||
		len(e.PopFreq) != len(o.PopFreq) {
		return false
	}
	for i := range e.PopFreq {
		if e.PopFreq[i] != o.PopFreq[i] {
			return false
		}
	}
	return matrixLength(e.CtBtTf) == matrixLength(o.CtBtTf) &&
		(matrixLength(e.CtBtTf) == 0 || e.CtBtTf.Equal(o.CtBtTf))
}

func matrixLength(b *bitio.BitBuffer) int {
	if b == nil {
		return 0
	}
	return b.BitLength()
}

// SummaryString renders the set summary bits, e.g. "LOF|CLINICAL".
func SummaryString(b byte) string {
	var parts []string
	for i, name := range SummaryBits {
		if b&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

func (e *AnnotationIndexEntry) String() string {
	return fmt.Sprintf("{%s ct=%d bt=%d tf=%d pf=%v cl=%d/%d}",
		SummaryString(e.Summary), e.ConsequenceType, e.Biotype, e.TranscriptFlag, e.PopFreq,
		e.ClinicalSource, e.ClinicalSignificance)
}
