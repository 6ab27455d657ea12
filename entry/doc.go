// Package entry models one row of the sample index: the variants of a sample
// inside a genomic batch, grouped by genotype.
//
// Every genotype owns a set of byte columns (variants, file index, annotation
// sub indexes, parents, mendelian errors). A Cursor decodes them in lock-step
// and a Builder produces them, together with the mutations needed to replace
// an existing row.
package entry
