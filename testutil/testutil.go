package testutil

import (
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
	"github.com/stretchr/testify/require"
)

var bases = []string{"A", "C", "G", "T"}

// RNG is a seeded random source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// SNVs returns n distinct single nucleotide variants with start in
// [from, to], sorted by position.
func (r *RNG) SNVs(chromosome string, n, from, to int) []variant.Variant {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]struct{}, n)
	out := make([]variant.Variant, 0, n)
	for len(out) < n && len(seen) <= to-from {
		pos := from + r.rand.Intn(to-from+1)
		if _, ok := seen[pos]; ok {
			continue
		}
		seen[pos] = struct{}{}
		ref := r.rand.Intn(4)
		alt := (ref + 1 + r.rand.Intn(3)) % 4
		out = append(out, variant.New(chromosome, pos, bases[ref], bases[alt]))
	}
	slices.SortFunc(out, variant.Compare)
	return out
}

// Genotype returns one of the given genotypes.
func (r *RNG) Genotype(gts ...string) string {
	return gts[r.Intn(len(gts))]
}

// SampleVariant returns v with a file index entry at filePosition holding
// attrs.
func SampleVariant(t testing.TB, s *schema.SampleIndexSchema, v variant.Variant, filePosition int, attrs map[string]string) entry.SampleIndexVariant {
	t.Helper()
	fi, err := s.FileIndex().EncodeAttributes(filePosition, v.Type(), attrs)
	require.NoError(t, err)
	return entry.SampleIndexVariant{Variant: v, FileIndex: []*bitio.BitBuffer{fi}}
}

// Builder returns a builder for sampleID holding vs, all under genotype gt.
func Builder(t testing.TB, s *schema.SampleIndexSchema, sampleID int, gt string, vs ...variant.Variant) *entry.Builder {
	t.Helper()
	b := entry.NewBuilder(s, sampleID)
	for _, v := range vs {
		require.NoError(t, b.Add(gt, SampleVariant(t, s, v, 0, nil)))
	}
	return b
}
