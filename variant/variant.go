package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVariant is returned when a variant string cannot be parsed.
var ErrInvalidVariant = errors.New("invalid variant")

// Type classifies a variant by its alleles.
type Type string

const (
	SNV       Type = "SNV"
	MNV       Type = "MNV"
	INDEL     Type = "INDEL"
	Insertion Type = "INSERTION"
	Deletion  Type = "DELETION"
	CNV       Type = "CNV"
	Breakend  Type = "BREAKEND"
	Other     Type = "OTHER"
)

// Types lists every variant type in index code order.
var Types = []Type{SNV, MNV, INDEL, Insertion, Deletion, CNV, Breakend, Other}

// Variant is a normalized genomic variant. Empty alleles represent
// insertions (Reference) and deletions (Alternate).
type Variant struct {
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start"`
	Reference  string `json:"reference"`
	Alternate  string `json:"alternate"`
}

// New returns a variant. "-" alleles are normalized to empty strings.
func New(chromosome string, start int, reference, alternate string) Variant {
	return Variant{
		Chromosome: chromosome,
		Start:      start,
		Reference:  normalizeAllele(reference),
		Alternate:  normalizeAllele(alternate),
	}
}

func normalizeAllele(a string) string {
	if a == "-" {
		return ""
	}
	return a
}

func printAllele(a string) string {
	if a == "" {
		return "-"
	}
	return a
}

// Parse reads "chrom:start:ref:alt".
func Parse(s string) (Variant, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Variant{}, fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
	start, err := strconv.Atoi(parts[1])
	if err != nil || start <= 0 {
		return Variant{}, fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
	return New(parts[0], start, parts[2], parts[3]), nil
}

// MustParse is like Parse but panics on error. Intended for tests.
func MustParse(s string) Variant {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns "chrom:start:ref:alt".
func (v Variant) String() string {
	return v.Chromosome + ":" + strconv.Itoa(v.Start) + ":" + printAllele(v.Reference) + ":" + printAllele(v.Alternate)
}

// End returns the last reference position covered by the variant.
func (v Variant) End() int {
	if len(v.Reference) <= 1 {
		return v.Start
	}
	return v.Start + len(v.Reference) - 1
}

// Type classifies the variant.
func (v Variant) Type() Type {
	ref, alt := v.Reference, v.Alternate
	switch {
	case strings.HasPrefix(alt, "<CN") || alt == "<DEL>" || alt == "<DUP>":
		return CNV
	case strings.ContainsAny(alt, "[]"):
		return Breakend
	case strings.HasPrefix(alt, "<") || alt == "*":
		return Other
	case len(ref) == 1 && len(alt) == 1:
		return SNV
	case ref == "" && alt != "":
		return Insertion
	case alt == "" && ref != "":
		return Deletion
	case len(ref) == len(alt) && len(ref) > 1:
		return MNV
	default:
		return INDEL
	}
}

// Region is a 1-based closed genomic interval.
type Region struct {
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// ParseRegion reads "chrom", "chrom:pos" or "chrom:start-end".
func ParseRegion(s string) (Region, error) {
	chrom, rest, found := strings.Cut(s, ":")
	if !found {
		return Region{Chromosome: chrom, Start: 1, End: MaxPosition}, nil
	}
	startStr, endStr, isRange := strings.Cut(rest, "-")
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(endStr); err != nil {
			return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
	}
	return Region{Chromosome: chrom, Start: start, End: end}, nil
}

// MaxPosition is the end of a region given by chromosome only.
const MaxPosition = 1<<31 - 1

// String returns "chrom:start-end".
func (r Region) String() string {
	return r.Chromosome + ":" + strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// Contains reports whether the variant starts inside r.
func (r Region) Contains(v Variant) bool {
	return r.Chromosome == v.Chromosome && v.Start >= r.Start && v.Start <= r.End
}

// Overlaps reports whether both regions share at least one position.
func (r Region) Overlaps(o Region) bool {
	return r.Chromosome == o.Chromosome && r.Start <= o.End && o.Start <= r.End
}
