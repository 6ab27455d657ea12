package query

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidQuery is returned when a variant query cannot be answered by
	// the sample index.
	ErrInvalidQuery = errors.New("invalid sample index query")
	// ErrUnknownSample is returned by Metadata for samples it does not know.
	ErrUnknownSample = errors.New("unknown sample")
	// ErrUnknownFile is returned by Metadata for files not linked to a sample.
	ErrUnknownFile = errors.New("unknown file")
)

// Metadata resolves the sample information the index does not store.
type Metadata interface {
	SampleID(study, sample string) (int, error)
	// Parents returns the parents of a sample whose family index is built.
	// Unknown parents are empty.
	Parents(study, sample string) (father, mother string, err error)
	// Annotated reports whether the annotation columns of a sample are built.
	Annotated(study, sample string) (bool, error)
	// FilePosition returns the position of a file among the files of a sample.
	FilePosition(study, sample, file string) (int, error)
}

// SampleMetadata describes one sample of StaticMetadata.
type SampleMetadata struct {
	ID        int
	Father    string
	Mother    string
	Annotated bool
	// Files lists the files of the sample in file position order.
	Files []string
}

// StaticMetadata is an in-memory Metadata shared by all studies.
type StaticMetadata map[string]SampleMetadata

func (m StaticMetadata) sample(name string) (SampleMetadata, error) {
	s, ok := m[name]
	if !ok {
		return SampleMetadata{}, fmt.Errorf("%w: %s", ErrUnknownSample, name)
	}
	return s, nil
}

func (m StaticMetadata) SampleID(_, sample string) (int, error) {
	s, err := m.sample(sample)
	return s.ID, err
}

func (m StaticMetadata) Parents(_, sample string) (string, string, error) {
	s, err := m.sample(sample)
	return s.Father, s.Mother, err
}

func (m StaticMetadata) Annotated(_, sample string) (bool, error) {
	s, err := m.sample(sample)
	return s.Annotated, err
}

func (m StaticMetadata) FilePosition(_, sample, file string) (int, error) {
	s, err := m.sample(sample)
	if err != nil {
		return 0, err
	}
	i := slices.Index(s.Files, file)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s in sample %s", ErrUnknownFile, file, sample)
	}
	return i, nil
}
