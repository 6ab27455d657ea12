// Package variant defines the genomic variant model used by the sample index:
// normalized variants, regions, the genomic comparator and the compact byte
// encoding of variants inside a batch.
package variant
