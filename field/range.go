package field

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Delta separates a duplicated threshold from its predecessor, turning the
// pair into a bucket that holds exactly one value. It is also the width used
// to express inclusive upper bounds as exclusive ones.
const Delta = 0.0000001

// RangeField buckets numeric values by sorted thresholds.
//
// RangeGT fields are stored mirrored: thresholds and operands are negated so
// both kinds share the RangeLT code arithmetic.
type RangeField struct {
	base
	thresholds []float64
	min, max   float64
	gt         bool
	offset     int
}

// NewRange builds a range field. cfg must be valid.
func NewRange(cfg Configuration) *RangeField {
	f := &RangeField{
		gt:  cfg.Kind == RangeGT,
		min: -math.MaxFloat64,
		max: math.MaxFloat64,
	}
	raw := slices.Clone(cfg.Thresholds)
	if cfg.Min != nil {
		f.min = *cfg.Min
	}
	if cfg.Max != nil {
		f.max = *cfg.Max
	}
	if f.gt {
		for i := range raw {
			raw[i] = -raw[i]
		}
		slices.Reverse(raw)
		f.min, f.max = -f.max, -f.min
	}
	t := slices.Clone(raw)
	for i := 1; i < len(t); i++ {
		if raw[i] == raw[i-1] {
			t[i] = t[i-1] + Delta
		}
	}
	f.thresholds = t
	if cfg.Nullable {
		f.offset = 1
	}
	f.cfg = cfg
	f.bits = bitsFor(f.NumCodes())
	return f
}

// NumCodes returns the size of the code space, including the null code.
func (f *RangeField) NumCodes() int { return len(f.thresholds) + 1 + f.offset }

// Thresholds returns the effective thresholds in encoding order.
func (f *RangeField) Thresholds() []float64 { return f.thresholds }

// Encode returns the bucket of value.
func (f *RangeField) Encode(value float64) int {
	if f.gt {
		value = -value
	}
	return rangeCode(value, f.thresholds) + f.offset
}

// EncodeNull returns the null code. Non-nullable fields encode null as the
// bucket of zero.
func (f *RangeField) EncodeNull() int {
	if f.offset == 1 {
		return 0
	}
	return f.Encode(0)
}

// rangeCode is the number of thresholds lower than or equal to value.
func rangeCode(value float64, thresholds []float64) int {
	return sort.Search(len(thresholds), func(i int) bool { return thresholds[i] > value })
}

// rangeCodeExclusive is the first code not needed to cover values below value.
func rangeCodeExclusive(value float64, thresholds []float64) int {
	return sort.Search(len(thresholds), func(i int) bool { return thresholds[i] >= value }) + 1
}

// BuildFilter maps "op value" to the covering bucket interval. Supported
// operators are =, ==, <, <=, > and >=.
func (f *RangeField) BuildFilter(op string, value float64) (*RangeFilter, error) {
	x := value
	if f.gt {
		x = -value
		switch op {
		case "<":
			op = ">"
		case "<=":
			op = ">="
		case ">":
			op = "<"
		case ">=":
			op = "<="
		}
	}

	var lo, hi float64
	switch op {
	case "=", "==":
		lo, hi = x, x+Delta
	case "<":
		lo, hi = f.min, x
	case "<=":
		lo, hi = f.min, x+Delta
	case ">":
		lo, hi = x+Delta, f.max
	case ">=":
		lo, hi = x, f.max
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	return f.newFilter(lo, hi, fmt.Sprintf("%s%g", originalOp(op, f.gt), value)), nil
}

func originalOp(op string, gt bool) string {
	if !gt {
		return op
	}
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

func (f *RangeField) newFilter(lo, hi float64, desc string) *RangeFilter {
	minCode := rangeCode(lo, f.thresholds)
	maxCode := rangeCodeExclusive(hi, f.thresholds)
	exact := (lo == f.min || slices.Contains(f.thresholds, lo)) &&
		(hi == f.max || slices.Contains(f.thresholds, hi))
	return &RangeFilter{
		field:             f,
		desc:              desc,
		minValueInclusive: lo,
		maxValueExclusive: hi,
		minCodeInclusive:  minCode,
		maxCodeExclusive:  maxCode,
		exact:             exact,
	}
}

// RangeFilter accepts codes in [MinCodeInclusive, MaxCodeExclusive).
type RangeFilter struct {
	field             *RangeField
	desc              string
	minValueInclusive float64
	maxValueExclusive float64
	minCodeInclusive  int
	maxCodeExclusive  int
	exact             bool
}

// MinCodeInclusive returns the first accepted bucket, excluding the null offset.
func (f *RangeFilter) MinCodeInclusive() int { return f.minCodeInclusive }

// MaxCodeExclusive returns the first rejected bucket, excluding the null offset.
func (f *RangeFilter) MaxCodeExclusive() int { return f.maxCodeExclusive }

// MinValueInclusive returns the lower bound in encoding space.
func (f *RangeFilter) MinValueInclusive() float64 { return f.minValueInclusive }

// MaxValueExclusive returns the upper bound in encoding space.
func (f *RangeFilter) MaxValueExclusive() float64 { return f.maxValueExclusive }

func (f *RangeFilter) Test(code int) bool {
	c := code - f.field.offset
	if c < 0 {
		return false
	}
	return c >= f.minCodeInclusive && c < f.maxCodeExclusive
}

func (f *RangeFilter) IsNoOp() bool {
	return f.field.offset == 0 && f.minCodeInclusive == 0 && f.maxCodeExclusive >= len(f.field.thresholds)+1
}

func (f *RangeFilter) IsExactFilter() bool { return f.exact }
func (f *RangeFilter) Field() Field        { return f.field }

func (f *RangeFilter) String() string {
	return fmt.Sprintf("%s %s codes[%d,%d) exact=%t", fieldName(f.field), f.desc, f.minCodeInclusive, f.maxCodeExclusive, f.exact)
}
