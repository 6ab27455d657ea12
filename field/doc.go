// Package field implements the index field encodings of the sample index.
//
// A field maps an input value (a categorical name or a number) to a small
// integer code that is bit-packed into an entry column. Filters built from a
// field answer two questions for a decoded code: does it match, and is the
// answer exact, i.e. can the index alone decide the predicate without
// re-checking the full variant record.
//
// Kinds:
//   - Categorical: one code per value (optionally nullable, optional catch-all)
//   - CategoricalMultiValue: one bit per value, codes are bit masks
//   - RangeLT / RangeGT: numeric buckets delimited by sorted thresholds
//
// CombinationField joins two or three multi-valued fields into one matrix to
// reduce false positives compared to filtering each dimension on its own.
package field
