package schema

import (
	"slices"
	"strconv"
	"strings"
)

// GenotypeCodec maps genotypes to the 4-bit codes of the parents index.
// Phased genotypes are stored unphased and allele indexes above 2 collapse
// into 2.
type GenotypeCodec struct{}

// Genotype codes.
const (
	GenotypeUnknown = iota
	GenotypeHomRef
	GenotypeHet
	GenotypeHomAlt
	GenotypeHetAlt
	GenotypeRefOther
	GenotypeMissingRef
	GenotypeMissingAlt
	GenotypeMissing
	GenotypeHaploidRef
	GenotypeHaploidAlt
	GenotypeHaploidMissing
	GenotypeOther

	// NumGenotypeCodes is the size of the parents code space.
	NumGenotypeCodes = 16
)

// GenotypeCodeBits is the width of one parent code.
const GenotypeCodeBits = 4

var genotypeCodes = map[string]int{
	"0/0": GenotypeHomRef,
	"0/1": GenotypeHet,
	"1/1": GenotypeHomAlt,
	"1/2": GenotypeHetAlt,
	"0/2": GenotypeRefOther,
	"./0": GenotypeMissingRef,
	"./1": GenotypeMissingAlt,
	"./.": GenotypeMissing,
	"0":   GenotypeHaploidRef,
	"1":   GenotypeHaploidAlt,
	".":   GenotypeHaploidMissing,
}

var genotypeNames = func() map[int]string {
	m := make(map[int]string, len(genotypeCodes))
	for gt, c := range genotypeCodes {
		m[c] = gt
	}
	return m
}()

// Encode returns the code of gt. An empty genotype is unknown.
func (GenotypeCodec) Encode(gt string) int {
	if gt == "" {
		return GenotypeUnknown
	}
	if c, ok := genotypeCodes[NormalizeGenotype(gt)]; ok {
		return c
	}
	return GenotypeOther
}

// Decode returns the normalized genotype of code.
func (GenotypeCodec) Decode(code int) (string, bool) {
	gt, ok := genotypeNames[code]
	return gt, ok
}

// IsAmbiguous reports whether code stands for more than one genotype, so a
// filter on it cannot be answered from the index alone.
func (GenotypeCodec) IsAmbiguous(code int) bool {
	return code == GenotypeUnknown || code >= GenotypeOther
}

// EncodeParents packs the father and mother codes into one byte.
func (c GenotypeCodec) EncodeParents(father, mother string) byte {
	return byte(c.Encode(father)<<GenotypeCodeBits | c.Encode(mother))
}

// SplitParents unpacks a parents byte into father and mother codes.
func (GenotypeCodec) SplitParents(b byte) (father, mother int) {
	return int(b >> GenotypeCodeBits), int(b & 0x0F)
}

// NormalizeGenotype unphases gt, sorts its alleles with missing alleles first
// and collapses allele indexes above 2.
func NormalizeGenotype(gt string) string {
	alleles := strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' })
	for i, a := range alleles {
		if n, err := strconv.Atoi(a); err == nil && n > 2 {
			alleles[i] = "2"
		}
	}
	slices.SortFunc(alleles, func(a, b string) int {
		if a == b {
			return 0
		}
		if a == "." {
			return -1
		}
		if b == "." {
			return 1
		}
		return strings.Compare(a, b)
	})
	return strings.Join(alleles, "/")
}

// IsNegated reports whether gt is a negated genotype such as "!0/1".
func IsNegated(gt string) bool { return strings.HasPrefix(gt, "!") }

// IsIndexable reports whether variants with gt are stored in the index.
// Reference, missing and negated genotypes are not.
func IsIndexable(gt string) bool {
	if gt == "" || IsNegated(gt) {
		return false
	}
	switch NormalizeGenotype(gt) {
	case "0/0", "./0", "./.", "0", ".", "0/0/0":
		return false
	}
	return true
}
