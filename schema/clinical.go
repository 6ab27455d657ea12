package schema

import (
	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/internal/bitio"
)

// ClinicalIndexSchema stores clinical source and significance bits of
// variants flagged as CLINICAL.
type ClinicalIndexSchema struct {
	source       *field.CategoricalMultiValuedField
	significance *field.CategoricalMultiValuedField
}

func (s *ClinicalIndexSchema) Source() *field.CategoricalMultiValuedField { return s.source }

func (s *ClinicalIndexSchema) Significance() *field.CategoricalMultiValuedField {
	return s.significance
}

// BitLength is the width of one encoded entry.
func (s *ClinicalIndexSchema) BitLength() int {
	return s.source.BitLength() + s.significance.BitLength()
}

// Write appends the source and significance codes.
func (s *ClinicalIndexSchema) Write(source, significance int, out *bitio.BitOutputStream) error {
	if err := s.source.Write(source, out); err != nil {
		return err
	}
	return s.significance.Write(significance, out)
}

// Read consumes one entry.
func (s *ClinicalIndexSchema) Read(in *bitio.BitInputStream) (source, significance int, err error) {
	if source, err = s.source.Read(in); err != nil {
		return 0, 0, err
	}
	if significance, err = s.significance.Read(in); err != nil {
		return 0, 0, err
	}
	return source, significance, nil
}
