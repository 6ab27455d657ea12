package query

import (
	"slices"
	"strconv"

	"github.com/hupe1980/sampleidx/variant"
)

// LocusQuery restricts a scan to a batch aligned ChunkRegion. Regions and
// Variants further filter the variants of the scanned entries; both empty
// means every variant of the chunk matches.
type LocusQuery struct {
	ChunkRegion variant.Region
	Regions     []variant.Region
	Variants    []variant.Variant
}

// HasFilter reports whether the query filters below batch granularity.
func (q LocusQuery) HasFilter() bool { return len(q.Regions) > 0 || len(q.Variants) > 0 }

// Test reports whether v is selected by the query.
func (q LocusQuery) Test(v variant.Variant) bool {
	if !q.ChunkRegion.Contains(v) {
		return false
	}
	if !q.HasFilter() {
		return true
	}
	for _, r := range q.Regions {
		if r.Contains(v) {
			return true
		}
	}
	for _, o := range q.Variants {
		if variant.SameGenomicVariant(o, v) {
			return true
		}
	}
	return false
}

// MatchesWithBatch reports whether the batch starting at batchStart of
// chromosome lies within the chunk region.
func (q LocusQuery) MatchesWithBatch(chromosome string, batchStart int) bool {
	return q.ChunkRegion.Overlaps(variant.Region{
		Chromosome: chromosome,
		Start:      batchStart,
		End:        batchStart + variant.BatchSize - 1,
	})
}

// StartsAtBatch reports whether the chunk region begins on a batch boundary.
func (q LocusQuery) StartsAtBatch() bool { return q.ChunkRegion.Start%variant.BatchSize == 0 }

// EndsAtBatch reports whether the chunk region ends on a batch boundary.
func (q LocusQuery) EndsAtBatch() bool { return (q.ChunkRegion.End+1)%variant.BatchSize == 0 }

func (q LocusQuery) String() string {
	s := q.ChunkRegion.String()
	if len(q.Regions) > 0 {
		s += " regions=" + strconv.Itoa(len(q.Regions))
	}
	if len(q.Variants) > 0 {
		s += " variants=" + strconv.Itoa(len(q.Variants))
	}
	return s
}

// SplitLocusQuery splits r at batch boundaries. Batches fully covered by r
// form one chunk without locus filter; a partially covered first or last
// batch gets its own query carrying the clipped region.
func SplitLocusQuery(r variant.Region) []LocusQuery {
	start, end := r.Start, r.End
	if start <= 1 {
		start = 0
	}
	if end >= variant.MaxPosition {
		end = alignedEnd(variant.MaxPosition)
	}
	if end < start {
		return nil
	}
	firstBatch, lastBatch := variant.BatchStart(start), variant.BatchStart(end)
	startAligned := start == firstBatch
	endAligned := end == lastBatch+variant.BatchSize-1

	chunk := func(s, e int) variant.Region {
		return variant.Region{Chromosome: r.Chromosome, Start: s, End: e}
	}
	clipped := func(s, e int) []variant.Region {
		return []variant.Region{{Chromosome: r.Chromosome, Start: max(s, r.Start), End: min(e, r.End)}}
	}

	if firstBatch == lastBatch {
		q := LocusQuery{ChunkRegion: chunk(firstBatch, firstBatch+variant.BatchSize-1)}
		if !startAligned || !endAligned {
			q.Regions = clipped(start, end)
		}
		return []LocusQuery{q}
	}

	var out []LocusQuery
	fullStart, fullEnd := firstBatch, lastBatch+variant.BatchSize-1
	if !startAligned {
		out = append(out, LocusQuery{
			ChunkRegion: chunk(firstBatch, firstBatch+variant.BatchSize-1),
			Regions:     clipped(start, firstBatch+variant.BatchSize-1),
		})
		fullStart = firstBatch + variant.BatchSize
	}
	if !endAligned {
		fullEnd = lastBatch - 1
	}
	if fullStart < fullEnd {
		out = append(out, LocusQuery{ChunkRegion: chunk(fullStart, fullEnd)})
	}
	if !endAligned {
		out = append(out, LocusQuery{
			ChunkRegion: chunk(lastBatch, lastBatch+variant.BatchSize-1),
			Regions:     clipped(lastBatch, end),
		})
	}
	return out
}

func alignedEnd(pos int) int {
	return variant.BatchStart(pos) + variant.BatchSize - 1
}

// BuildLocusQueries turns regions and variants into locus queries. Variants
// are grouped by batch. The result is sorted by chunk region.
func BuildLocusQueries(regions []variant.Region, variants []variant.Variant) []LocusQuery {
	var out []LocusQuery
	for _, r := range regions {
		out = append(out, SplitLocusQuery(r)...)
	}
	byBatch := make(map[variant.Region]int)
	for _, v := range variants {
		b := variant.BatchStart(v.Start)
		chunk := variant.Region{Chromosome: v.Chromosome, Start: b, End: b + variant.BatchSize - 1}
		i, ok := byBatch[chunk]
		if !ok {
			i = len(out)
			byBatch[chunk] = i
			out = append(out, LocusQuery{ChunkRegion: chunk})
		}
		out[i].Variants = append(out[i].Variants, v)
	}
	slices.SortStableFunc(out, func(a, b LocusQuery) int {
		if c := variant.CompareChromosome(a.ChunkRegion.Chromosome, b.ChunkRegion.Chromosome); c != 0 {
			return c
		}
		if a.ChunkRegion.Start != b.ChunkRegion.Start {
			return a.ChunkRegion.Start - b.ChunkRegion.Start
		}
		return a.ChunkRegion.End - b.ChunkRegion.End
	})
	return out
}

// ScanRegions merges the chunk regions of qs into disjoint, ordered regions
// so that every batch is read once.
func ScanRegions(qs []LocusQuery) []variant.Region {
	regions := make([]variant.Region, len(qs))
	for i, q := range qs {
		regions[i] = q.ChunkRegion
	}
	slices.SortFunc(regions, func(a, b variant.Region) int {
		if c := variant.CompareChromosome(a.Chromosome, b.Chromosome); c != 0 {
			return c
		}
		return a.Start - b.Start
	})
	var out []variant.Region
	for _, r := range regions {
		if n := len(out); n > 0 && out[n-1].Chromosome == r.Chromosome && r.Start <= out[n-1].End+1 {
			out[n-1].End = max(out[n-1].End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}
