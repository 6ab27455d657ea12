package filter

import (
	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/variant"
)

// Converter materializes the current variant of a cursor as T and orders
// values of T by genomic position.
type Converter[T any] interface {
	Convert(c *entry.Cursor) (T, error)
	ToVariant(v T) variant.Variant
	SameGenomicVariant(a, b T) bool
	Compare(a, b T) int
}

// VariantConverter yields bare variants.
type VariantConverter struct{}

func (VariantConverter) Convert(c *entry.Cursor) (variant.Variant, error) { return c.Variant(), nil }
func (VariantConverter) ToVariant(v variant.Variant) variant.Variant      { return v }
func (VariantConverter) SameGenomicVariant(a, b variant.Variant) bool     { return variant.SameGenomicVariant(a, b) }
func (VariantConverter) Compare(a, b variant.Variant) int                 { return variant.Compare(a, b) }

// SampleVariantConverter yields variants with their decoded index columns.
type SampleVariantConverter struct{}

func (SampleVariantConverter) Convert(c *entry.Cursor) (entry.SampleIndexVariant, error) {
	return c.SampleIndexVariant()
}

func (SampleVariantConverter) ToVariant(v entry.SampleIndexVariant) variant.Variant {
	return v.Variant
}

func (SampleVariantConverter) SameGenomicVariant(a, b entry.SampleIndexVariant) bool {
	return variant.SameGenomicVariant(a.Variant, b.Variant)
}

func (SampleVariantConverter) Compare(a, b entry.SampleIndexVariant) int {
	return variant.Compare(a.Variant, b.Variant)
}
