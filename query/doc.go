// Package query describes what to read from the sample index.
//
// A SampleIndexQuery holds one SingleSampleIndexQuery per sample. Each single
// sample query is bound to a schema and combines a genotype set, file index
// filters, an annotation index filter and locus constraints. Parser derives
// these descriptors from a VariantQuery and reports which parameters the
// index answers exactly, so callers only post-filter what remains.
package query
