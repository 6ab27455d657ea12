package schema

import (
	"fmt"

	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/internal/bitio"
)

// PopulationFrequencyIndexSchema concatenates one range field per population.
type PopulationFrequencyIndexSchema struct {
	populations []Population
	fields      []*field.RangeField
	bitLength   int
}

func newPopulationFrequencyIndexSchema(cfg *PopulationFrequencyConfiguration) *PopulationFrequencyIndexSchema {
	s := &PopulationFrequencyIndexSchema{populations: cfg.Populations}
	for _, c := range cfg.Fields() {
		f := field.NewRange(c)
		s.fields = append(s.fields, f)
		s.bitLength += f.BitLength()
	}
	return s
}

// Populations returns the indexed populations in layout order.
func (s *PopulationFrequencyIndexSchema) Populations() []Population { return s.populations }

// Fields returns the per-population fields in layout order.
func (s *PopulationFrequencyIndexSchema) Fields() []*field.RangeField { return s.fields }

// BitLength is the width of one encoded entry.
func (s *PopulationFrequencyIndexSchema) BitLength() int { return s.bitLength }

// Field returns the field of population key ("study:population").
func (s *PopulationFrequencyIndexSchema) Field(key string) (*field.RangeField, int, bool) {
	for i, p := range s.populations {
		if p.Key() == key {
			return s.fields[i], i, true
		}
	}
	return nil, -1, false
}

// Encode maps frequencies keyed by population to codes. Populations without
// a frequency are encoded as frequency zero.
func (s *PopulationFrequencyIndexSchema) Encode(freqs map[string]float64) []int {
	codes := make([]int, len(s.fields))
	for i, p := range s.populations {
		codes[i] = s.fields[i].Encode(freqs[p.Key()])
	}
	return codes
}

// Write appends codes to out.
func (s *PopulationFrequencyIndexSchema) Write(codes []int, out *bitio.BitOutputStream) error {
	if len(codes) != len(s.fields) {
		return fmt.Errorf("%w: got %d population codes, want %d", ErrInvalidConfiguration, len(codes), len(s.fields))
	}
	for i, f := range s.fields {
		if err := f.Write(codes[i], out); err != nil {
			return err
		}
	}
	return nil
}

// Read consumes one entry.
func (s *PopulationFrequencyIndexSchema) Read(in *bitio.BitInputStream) ([]int, error) {
	codes := make([]int, len(s.fields))
	for i, f := range s.fields {
		c, err := f.Read(in)
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}
