package field

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// CategoricalMultiValuedField assigns one bit per configured value. A code is
// the union of the bits of every value present.
type CategoricalMultiValuedField struct {
	base
	values []string
	bitOf  map[string]int
	names  map[int][]string
	other  int
}

// NewCategoricalMultiValued builds a multi-valued categorical field. cfg must be valid.
func NewCategoricalMultiValued(cfg Configuration) *CategoricalMultiValuedField {
	f := &CategoricalMultiValuedField{
		bitOf: make(map[string]int),
		names: make(map[int][]string),
		other: -1,
	}
	values := slices.Clone(cfg.Values)
	if cfg.Other != "" && !slices.Contains(values, cfg.Other) {
		values = append(values, cfg.Other)
	}
	for i, v := range values {
		f.bitOf[v] = i
		f.names[i] = append(f.names[i], v)
		for _, alias := range cfg.ValuesMapping[v] {
			f.bitOf[alias] = i
			f.names[i] = append(f.names[i], alias)
		}
	}
	if cfg.Other != "" {
		f.other = f.bitOf[cfg.Other]
	}
	f.values = values
	f.cfg = cfg
	f.bits = len(values)
	return f
}

// Values returns the canonical values in bit order.
func (f *CategoricalMultiValuedField) Values() []string { return f.values }

// Bit returns the bit index of value.
func (f *CategoricalMultiValuedField) Bit(value string) (int, bool) {
	b, ok := f.bitOf[value]
	if !ok && f.other >= 0 {
		return f.other, true
	}
	return b, ok
}

// Encode ORs the bits of values. Unknown values map to the catch-all bit, or
// are ignored when the field has none.
func (f *CategoricalMultiValuedField) Encode(values ...string) int {
	code := 0
	for _, v := range values {
		if b, ok := f.Bit(v); ok {
			code |= 1 << b
		}
	}
	return code
}

// Decode returns the canonical values whose bits are set.
func (f *CategoricalMultiValuedField) Decode(code int) []string {
	var out []string
	for c := uint(code); c != 0; c &= c - 1 {
		i := bits.TrailingZeros(c)
		if i < len(f.values) {
			out = append(out, f.values[i])
		}
	}
	return out
}

// BuildFilter matches codes sharing at least one bit with values.
func (f *CategoricalMultiValuedField) BuildFilter(values ...string) Filter {
	if len(values) == 0 {
		return NewNoOpFilter(f)
	}
	accepted := bitset.New(uint(len(f.values)))
	mask := 0
	for _, v := range values {
		b, ok := f.bitOf[v]
		if !ok {
			return NewNoOpFilter(f)
		}
		accepted.Set(uint(b))
		mask |= 1 << b
	}
	return &MultiValuedFilter{
		field:  f,
		values: values,
		mask:   mask,
		exact:  exactCodes(accepted, f.names, f.other, values),
	}
}

// MultiValuedFilter matches codes intersecting a bit mask.
type MultiValuedFilter struct {
	field  *CategoricalMultiValuedField
	values []string
	mask   int
	exact  bool
}

// Mask returns the accepted bits.
func (f *MultiValuedFilter) Mask() int { return f.mask }

func (f *MultiValuedFilter) Test(code int) bool  { return code&f.mask != 0 }
func (f *MultiValuedFilter) IsNoOp() bool        { return false }
func (f *MultiValuedFilter) IsExactFilter() bool { return f.exact }
func (f *MultiValuedFilter) Field() Field        { return f.field }

func (f *MultiValuedFilter) String() string {
	return fmt.Sprintf("%s ANY %s (mask %#x)", fieldName(f.field), joinValues(f.values), f.mask)
}
