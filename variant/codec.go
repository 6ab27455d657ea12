package variant

import (
	"bytes"
	"errors"
	"fmt"
)

// BatchSize is the genomic window covered by one index entry.
const BatchSize = 1_000_000

const (
	int24Length = 3
	separator   = 0x00
)

// ErrMalformed is returned when encoded variant bytes cannot be decoded.
var ErrMalformed = errors.New("malformed variant bytes")

// BatchStart returns the start of the batch covering position.
func BatchStart(position int) int {
	return position - position%BatchSize
}

var snvAlleles = [4]byte{'A', 'C', 'G', 'T'}

func alleleIndex(b byte) int {
	switch b {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	}
	return -1
}

// snvCode packs a pair of distinct ACGT alleles into 1..12.
func snvCode(ref, alt string) byte {
	if len(ref) != 1 || len(alt) != 1 {
		return 0
	}
	r, a := alleleIndex(ref[0]), alleleIndex(alt[0])
	if r < 0 || a < 0 || r == a {
		return 0
	}
	if a > r {
		a--
	}
	return byte(r*3 + a + 1)
}

func snvDecode(code byte) (string, string) {
	c := int(code) - 1
	r, a := c/3, c%3
	if a >= r {
		a++
	}
	return string(snvAlleles[r]), string(snvAlleles[a])
}

// EncodedSize returns the number of bytes AppendVariant writes for v.
func EncodedSize(v Variant) int {
	if snvCode(v.Reference, v.Alternate) != 0 {
		return int24Length
	}
	return int24Length + len(v.Reference) + 1 + len(v.Alternate) + 1
}

// AppendVariant appends the batch-relative encoding of v.
//
// The record starts with the big-endian 24-bit offset of v inside its batch.
// SNVs over ACGT store their alleles in the high nibble of the first byte;
// every other variant is followed by "ref 0x00 alt 0x00".
func AppendVariant(dst []byte, v Variant) []byte {
	rel := v.Start % BatchSize
	b0 := byte(rel >> 16)
	if code := snvCode(v.Reference, v.Alternate); code != 0 {
		return append(dst, b0|code<<4, byte(rel>>8), byte(rel))
	}
	dst = append(dst, b0, byte(rel>>8), byte(rel))
	dst = append(dst, v.Reference...)
	dst = append(dst, separator)
	dst = append(dst, v.Alternate...)
	return append(dst, separator)
}

// DecodeVariant decodes one record from the head of b and returns its length.
func DecodeVariant(chromosome string, batchStart int, b []byte) (Variant, int, error) {
	if len(b) < int24Length {
		return Variant{}, 0, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(b))
	}
	rel := int(b[0]&0x0F)<<16 | int(b[1])<<8 | int(b[2])
	if code := b[0] >> 4; code != 0 {
		if code > 12 {
			return Variant{}, 0, fmt.Errorf("%w: allele code %d", ErrMalformed, code)
		}
		ref, alt := snvDecode(code)
		return Variant{Chromosome: chromosome, Start: batchStart + rel, Reference: ref, Alternate: alt}, int24Length, nil
	}
	rest := b[int24Length:]
	refEnd := bytes.IndexByte(rest, separator)
	if refEnd < 0 {
		return Variant{}, 0, fmt.Errorf("%w: missing reference separator", ErrMalformed)
	}
	altEnd := bytes.IndexByte(rest[refEnd+1:], separator)
	if altEnd < 0 {
		return Variant{}, 0, fmt.Errorf("%w: missing alternate separator", ErrMalformed)
	}
	v := Variant{
		Chromosome: chromosome,
		Start:      batchStart + rel,
		Reference:  string(rest[:refEnd]),
		Alternate:  string(rest[refEnd+1 : refEnd+1+altEnd]),
	}
	return v, int24Length + refEnd + 1 + altEnd + 1, nil
}

// EncodeVariants encodes variants back to back.
func EncodeVariants(vs []Variant) []byte {
	size := 0
	for _, v := range vs {
		size += EncodedSize(v)
	}
	out := make([]byte, 0, size)
	for _, v := range vs {
		out = AppendVariant(out, v)
	}
	return out
}

// DecodeVariants decodes every record of b.
func DecodeVariants(chromosome string, batchStart int, b []byte) ([]Variant, error) {
	var out []Variant
	for len(b) >= int24Length {
		v, n, err := DecodeVariant(chromosome, batchStart, b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}
