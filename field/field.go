package field

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/hupe1980/sampleidx/internal/bitio"
)

var (
	// ErrUnknownValue is returned when a value is not part of a categorical field
	// and the field has no catch-all value.
	ErrUnknownValue = errors.New("unknown field value")

	// ErrInvalidOperator is returned for unsupported relational operators.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidConfiguration is returned by NewField for malformed configurations.
	ErrInvalidConfiguration = errors.New("invalid field configuration")
)

// Kind tags the encoding used by a field.
type Kind string

const (
	// Categorical assigns one code per value.
	Categorical Kind = "CATEGORICAL"
	// CategoricalMultiValue assigns one bit per value.
	CategoricalMultiValue Kind = "CATEGORICAL_MULTI_VALUE"
	// RangeLT buckets values as [t[i-1], t[i]).
	RangeLT Kind = "RANGE_LT"
	// RangeGT buckets values as (t[i-1], t[i]].
	RangeGT Kind = "RANGE_GT"
)

// Source identifies where the indexed value comes from.
type Source string

const (
	SourceFile       Source = "FILE"
	SourceSample     Source = "SAMPLE"
	SourceAnnotation Source = "ANNOTATION"
)

// Configuration describes one index field.
type Configuration struct {
	Source Source `mapstructure:"source" json:"source"`
	Key    string `mapstructure:"key" json:"key"`
	Kind   Kind   `mapstructure:"type" json:"type"`

	// Values lists categorical values in code order.
	Values []string `mapstructure:"values" json:"values,omitempty"`
	// ValuesMapping maps a value to additional aliases sharing its code.
	ValuesMapping map[string][]string `mapstructure:"valuesMapping" json:"valuesMapping,omitempty"`
	// Other is the catch-all value for unknown inputs. It is appended to Values
	// when not already listed.
	Other string `mapstructure:"other" json:"other,omitempty"`

	// Thresholds are the sorted range boundaries.
	Thresholds []float64 `mapstructure:"thresholds" json:"thresholds,omitempty"`
	// Min and Max bound the domain of a range field. Nil means unbounded.
	Min *float64 `mapstructure:"min" json:"min,omitempty"`
	Max *float64 `mapstructure:"max" json:"max,omitempty"`

	Nullable bool `mapstructure:"nullable" json:"nullable,omitempty"`
}

// ID returns "SOURCE:key".
func (c Configuration) ID() string {
	return string(c.Source) + ":" + c.Key
}

// Validate checks structural constraints of the configuration.
func (c Configuration) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: missing key", ErrInvalidConfiguration)
	}
	switch c.Kind {
	case Categorical, CategoricalMultiValue:
		if len(c.Values) == 0 && c.Other == "" {
			return fmt.Errorf("%w: %s has no values", ErrInvalidConfiguration, c.ID())
		}
		if c.Kind == CategoricalMultiValue && len(c.Values) > 32 {
			return fmt.Errorf("%w: %s has %d values, at most 32 supported", ErrInvalidConfiguration, c.ID(), len(c.Values))
		}
	case RangeLT, RangeGT:
		if len(c.Thresholds) == 0 {
			return fmt.Errorf("%w: %s has no thresholds", ErrInvalidConfiguration, c.ID())
		}
		for i := 1; i < len(c.Thresholds); i++ {
			if c.Thresholds[i] < c.Thresholds[i-1] {
				return fmt.Errorf("%w: %s thresholds not sorted", ErrInvalidConfiguration, c.ID())
			}
		}
	default:
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidConfiguration, c.ID(), c.Kind)
	}
	return nil
}

// Field is a configured index field.
type Field interface {
	Key() string
	Source() Source
	Kind() Kind
	Configuration() Configuration
	// BitLength is the fixed width of one encoded code.
	BitLength() int
	Write(code int, out *bitio.BitOutputStream) error
	Read(in *bitio.BitInputStream) (int, error)
}

// Filter tests decoded codes of a single field.
type Filter interface {
	Test(code int) bool
	// IsNoOp reports whether the filter accepts every code.
	IsNoOp() bool
	// IsExactFilter reports whether a matching code implies a matching value.
	IsExactFilter() bool
	Field() Field
	String() string
}

// New builds a field from its configuration.
func New(cfg Configuration) (Field, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case Categorical:
		return NewCategorical(cfg), nil
	case CategoricalMultiValue:
		return NewCategoricalMultiValued(cfg), nil
	default:
		return NewRange(cfg), nil
	}
}

type base struct {
	cfg  Configuration
	bits int
}

func (b *base) Key() string                  { return b.cfg.Key }
func (b *base) Source() Source               { return b.cfg.Source }
func (b *base) Kind() Kind                   { return b.cfg.Kind }
func (b *base) Configuration() Configuration { return b.cfg }
func (b *base) BitLength() int               { return b.bits }

func (b *base) Write(code int, out *bitio.BitOutputStream) error {
	return out.Write(uint32(code), b.bits)
}

func (b *base) Read(in *bitio.BitInputStream) (int, error) {
	v, err := in.Read(b.bits)
	return int(v), err
}

// bitsFor returns the bits needed to represent n distinct codes.
func bitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// NoOpFilter accepts every code.
type NoOpFilter struct {
	field Field
}

// NewNoOpFilter returns a filter accepting all codes of f.
func NewNoOpFilter(f Field) *NoOpFilter { return &NoOpFilter{field: f} }

func (*NoOpFilter) Test(int) bool       { return true }
func (*NoOpFilter) IsNoOp() bool        { return true }
func (*NoOpFilter) IsExactFilter() bool { return true }
func (f *NoOpFilter) Field() Field      { return f.field }
func (f *NoOpFilter) String() string    { return fieldName(f.field) + " NOOP" }

// IsNoOp reports whether f is nil or accepts everything.
func IsNoOp(f Filter) bool {
	return f == nil || f.IsNoOp()
}

// IsExact reports whether f is nil or exact.
func IsExact(f Filter) bool {
	return f == nil || f.IsExactFilter()
}

func fieldName(f Field) string {
	if f == nil {
		return "?"
	}
	return string(f.Source()) + ":" + f.Key()
}

func joinValues(values []string) string {
	return "[" + strings.Join(values, ",") + "]"
}
