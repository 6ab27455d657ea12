package field

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// CategoricalField assigns one code per configured value.
//
// When the field is nullable code 0 is reserved for a missing value and the
// configured values start at code 1.
type CategoricalField struct {
	base
	values []string
	codes  map[string]int
	names  map[int][]string
	other  int
	offset int
}

// NewCategorical builds a single-valued categorical field. cfg must be valid.
func NewCategorical(cfg Configuration) *CategoricalField {
	f := &CategoricalField{
		codes: make(map[string]int),
		names: make(map[int][]string),
		other: -1,
	}
	values := slices.Clone(cfg.Values)
	if cfg.Other != "" && !slices.Contains(values, cfg.Other) {
		values = append(values, cfg.Other)
	}
	if cfg.Nullable {
		f.offset = 1
	}
	for i, v := range values {
		code := i + f.offset
		f.codes[v] = code
		f.names[code] = append(f.names[code], v)
		for _, alias := range cfg.ValuesMapping[v] {
			f.codes[alias] = code
			f.names[code] = append(f.names[code], alias)
		}
	}
	if cfg.Other != "" {
		f.other = f.codes[cfg.Other]
	}
	f.values = values
	f.cfg = cfg
	f.bits = bitsFor(len(values) + f.offset)
	return f
}

// Values returns the canonical values in code order.
func (f *CategoricalField) Values() []string { return f.values }

// NumCodes returns the size of the code space.
func (f *CategoricalField) NumCodes() int { return len(f.values) + f.offset }

// Encode returns the code of value. An empty value encodes as null for
// nullable fields.
func (f *CategoricalField) Encode(value string) (int, error) {
	if value == "" && f.offset == 1 {
		return 0, nil
	}
	if code, ok := f.codes[value]; ok {
		return code, nil
	}
	if f.other >= 0 {
		return f.other, nil
	}
	if f.offset == 1 {
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q for %s", ErrUnknownValue, value, fieldName(f))
}

// Decode returns the canonical value of code. Null decodes as "", false.
func (f *CategoricalField) Decode(code int) (string, bool) {
	i := code - f.offset
	if i < 0 || i >= len(f.values) {
		return "", false
	}
	return f.values[i], true
}

// BuildFilter accepts any of values. An unknown value yields a no-op filter.
func (f *CategoricalField) BuildFilter(values ...string) Filter {
	if len(values) == 0 {
		return NewNoOpFilter(f)
	}
	accepted := bitset.New(uint(f.NumCodes()))
	for _, v := range values {
		code, ok := f.codes[v]
		if !ok {
			return NewNoOpFilter(f)
		}
		accepted.Set(uint(code))
	}
	if int(accepted.Count()) == f.NumCodes() {
		return NewNoOpFilter(f)
	}
	return &CategoricalFilter{
		field:    f,
		values:   values,
		accepted: accepted,
		exact:    exactCodes(accepted, f.names, f.other, values),
	}
}

// exactCodes reports whether every name sharing an accepted code was requested
// and the catch-all code is not accepted.
func exactCodes(accepted *bitset.BitSet, names map[int][]string, other int, values []string) bool {
	for code, ok := accepted.NextSet(0); ok; code, ok = accepted.NextSet(code + 1) {
		if int(code) == other {
			return false
		}
		for _, n := range names[int(code)] {
			if !slices.Contains(values, n) {
				return false
			}
		}
	}
	return true
}

// CategoricalFilter matches a set of categorical codes.
type CategoricalFilter struct {
	field    *CategoricalField
	values   []string
	accepted *bitset.BitSet
	exact    bool
}

func (f *CategoricalFilter) Test(code int) bool {
	return code >= 0 && f.accepted.Test(uint(code))
}

func (f *CategoricalFilter) IsNoOp() bool        { return false }
func (f *CategoricalFilter) IsExactFilter() bool { return f.exact }
func (f *CategoricalFilter) Field() Field        { return f.field }

func (f *CategoricalFilter) String() string {
	return fieldName(f.field) + " IN " + joinValues(f.values)
}
