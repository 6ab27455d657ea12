package variant

import (
	"cmp"
	"strconv"
	"strings"
)

// ChromosomeRank orders chromosomes naturally: 1..22, X, Y, MT, then any other
// contig. Ties between unknown contigs are broken by name in Compare.
func ChromosomeRank(chromosome string) int {
	c := strings.TrimPrefix(strings.TrimPrefix(chromosome, "chr"), "CHR")
	if n, err := strconv.Atoi(c); err == nil && n > 0 {
		return n
	}
	switch strings.ToUpper(c) {
	case "X":
		return 1000
	case "Y":
		return 1001
	case "M", "MT":
		return 1002
	}
	return 2000
}

// CompareChromosome orders chromosomes by rank, then by name.
func CompareChromosome(a, b string) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(ChromosomeRank(a), ChromosomeRank(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Compare is a total order on (chromosome, start, reference, alternate).
func Compare(a, b Variant) int {
	if c := CompareChromosome(a.Chromosome, b.Chromosome); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	if c := strings.Compare(a.Reference, b.Reference); c != 0 {
		return c
	}
	return strings.Compare(a.Alternate, b.Alternate)
}

// SameGenomicVariant reports genomic identity, ignoring any other attribute.
func SameGenomicVariant(a, b Variant) bool {
	return a.Start == b.Start &&
		a.Chromosome == b.Chromosome &&
		a.Reference == b.Reference &&
		a.Alternate == b.Alternate
}
