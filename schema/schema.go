package schema

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sampleidx/field"
)

// ErrVersionMismatch is returned when data was written with another schema version.
var ErrVersionMismatch = errors.New("sample index schema version mismatch")

// VersionMismatchError carries both versions of a mismatch.
type VersionMismatchError struct {
	Expected int
	Actual   int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("sample index schema version mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// SampleIndexSchema is the immutable set of fields of one schema version.
type SampleIndexSchema struct {
	version int
	cfg     Configuration

	fileIndex     *FileIndexSchema
	ct            *field.CategoricalMultiValuedField
	bt            *field.CategoricalMultiValuedField
	tf            *field.CategoricalMultiValuedField
	ctBtTf        *field.CombinationField
	popFreq       *PopulationFrequencyIndexSchema
	clinical      *ClinicalIndexSchema
	genotypeCodec GenotypeCodec
}

// New validates cfg and builds the schema of version.
func New(version int, cfg Configuration) (*SampleIndexSchema, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fileIndex, err := newFileIndexSchema(cfg.FileIndex)
	if err != nil {
		return nil, err
	}
	a := cfg.AnnotationIndex
	s := &SampleIndexSchema{
		version:   version,
		cfg:       cfg,
		fileIndex: fileIndex,
		ct:        field.NewCategoricalMultiValued(*a.ConsequenceType),
		bt:        field.NewCategoricalMultiValued(*a.Biotype),
		tf:        field.NewCategoricalMultiValued(*a.TranscriptFlag),
		popFreq:   newPopulationFrequencyIndexSchema(a.PopulationFrequency),
		clinical: &ClinicalIndexSchema{
			source:       field.NewCategoricalMultiValued(*a.ClinicalSource),
			significance: field.NewCategoricalMultiValued(*a.ClinicalSignificance),
		},
	}
	s.ctBtTf = field.NewCombination("ctBtTf", s.ct, s.bt, s.tf)
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(version int, cfg Configuration) *SampleIndexSchema {
	s, err := New(version, cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSchema returns version 1 of the default configuration.
func DefaultSchema() *SampleIndexSchema {
	return MustNew(1, Default())
}

func (s *SampleIndexSchema) Version() int                 { return s.version }
func (s *SampleIndexSchema) Configuration() Configuration { return s.cfg }
func (s *SampleIndexSchema) FileIndex() *FileIndexSchema  { return s.fileIndex }

func (s *SampleIndexSchema) ConsequenceType() *field.CategoricalMultiValuedField { return s.ct }
func (s *SampleIndexSchema) Biotype() *field.CategoricalMultiValuedField         { return s.bt }
func (s *SampleIndexSchema) TranscriptFlag() *field.CategoricalMultiValuedField  { return s.tf }
func (s *SampleIndexSchema) CtBtTf() *field.CombinationField                     { return s.ctBtTf }

func (s *SampleIndexSchema) PopulationFrequency() *PopulationFrequencyIndexSchema { return s.popFreq }
func (s *SampleIndexSchema) Clinical() *ClinicalIndexSchema                       { return s.clinical }
func (s *SampleIndexSchema) Genotype() GenotypeCodec                              { return s.genotypeCodec }

// CheckVersion fails with *VersionMismatchError when version differs.
func (s *SampleIndexSchema) CheckVersion(version int) error {
	if version != s.version {
		return &VersionMismatchError{Expected: s.version, Actual: version}
	}
	return nil
}
