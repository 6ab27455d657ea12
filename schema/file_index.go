package schema

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/internal/bitio"
	"github.com/hupe1980/sampleidx/variant"
)

// FileIndexEntry is the decoded per-file index of one variant.
type FileIndexEntry struct {
	// MultiFile is set when another file index entry of the same variant
	// follows this one.
	MultiFile    bool
	FilePosition int
	VariantType  variant.Type
	// Codes holds the code of every custom field, in schema order.
	Codes []int
}

// FileIndexSchema lays out the per-file bits of a variant:
//
//	[multiFile:1][filePosition:n][variantType][custom fields...]
type FileIndexSchema struct {
	filePositionBits int
	variantType      *field.CategoricalField
	custom           []field.Field
	offsets          []int
	bitLength        int
}

func newFileIndexSchema(cfg FileIndexConfiguration) (*FileIndexSchema, error) {
	types := make([]string, len(variant.Types))
	for i, t := range variant.Types {
		types[i] = string(t)
	}
	s := &FileIndexSchema{
		filePositionBits: cfg.FilePositionBits,
		variantType: field.NewCategorical(field.Configuration{
			Source: field.SourceFile,
			Key:    "type",
			Kind:   field.Categorical,
			Values: types,
			Other:  string(variant.Other),
		}),
	}
	off := 1 + s.filePositionBits + s.variantType.BitLength()
	for _, c := range cfg.CustomFields {
		f, err := field.New(c)
		if err != nil {
			return nil, err
		}
		s.custom = append(s.custom, f)
		s.offsets = append(s.offsets, off)
		off += f.BitLength()
	}
	s.bitLength = off
	return s, nil
}

// BitLength is the width of one file index entry.
func (s *FileIndexSchema) BitLength() int { return s.bitLength }

// FilePositionBits is the width of the file position.
func (s *FileIndexSchema) FilePositionBits() int { return s.filePositionBits }

// MaxFilePosition is the highest addressable file position.
func (s *FileIndexSchema) MaxFilePosition() int { return 1<<s.filePositionBits - 1 }

// VariantTypeField returns the variant type field.
func (s *FileIndexSchema) VariantTypeField() *field.CategoricalField { return s.variantType }

// CustomFields returns the configured custom fields in layout order.
func (s *FileIndexSchema) CustomFields() []field.Field { return s.custom }

// CustomField looks up a custom field and its index.
func (s *FileIndexSchema) CustomField(source field.Source, key string) (field.Field, int, bool) {
	for i, f := range s.custom {
		if f.Source() == source && f.Key() == key {
			return f, i, true
		}
	}
	return nil, -1, false
}

// Encode packs entry into a BitBuffer of BitLength bits.
func (s *FileIndexSchema) Encode(entry FileIndexEntry) (*bitio.BitBuffer, error) {
	if entry.FilePosition < 0 || entry.FilePosition > s.MaxFilePosition() {
		return nil, fmt.Errorf("%w: file position %d needs more than %d bits", ErrInvalidConfiguration, entry.FilePosition, s.filePositionBits)
	}
	if len(entry.Codes) != len(s.custom) {
		return nil, fmt.Errorf("%w: got %d custom codes, want %d", ErrInvalidConfiguration, len(entry.Codes), len(s.custom))
	}
	vt, err := s.variantType.Encode(string(entry.VariantType))
	if err != nil {
		return nil, err
	}
	out := bitio.NewBitOutputStream(s.bitLength)
	multi := uint32(0)
	if entry.MultiFile {
		multi = 1
	}
	if err := out.Write(multi, 1); err != nil {
		return nil, err
	}
	if err := out.Write(uint32(entry.FilePosition), s.filePositionBits); err != nil {
		return nil, err
	}
	if err := s.variantType.Write(vt, out); err != nil {
		return nil, err
	}
	for i, f := range s.custom {
		if err := f.Write(entry.Codes[i], out); err != nil {
			return nil, err
		}
	}
	return bitio.WrapBitBufferLen(out.Bytes(), s.bitLength), nil
}

// Decode unpacks a file index entry.
func (s *FileIndexSchema) Decode(buf *bitio.BitBuffer) (FileIndexEntry, error) {
	in := bitio.NewBitInputStreamLen(buf.Bytes(), buf.BitLength())
	return s.Read(in)
}

// Read consumes one file index entry from in.
func (s *FileIndexSchema) Read(in *bitio.BitInputStream) (FileIndexEntry, error) {
	var e FileIndexEntry
	multi, err := in.Read(1)
	if err != nil {
		return e, err
	}
	pos, err := in.Read(s.filePositionBits)
	if err != nil {
		return e, err
	}
	vt, err := s.variantType.Read(in)
	if err != nil {
		return e, err
	}
	e.MultiFile = multi == 1
	e.FilePosition = int(pos)
	if name, ok := s.variantType.Decode(vt); ok {
		e.VariantType = variant.Type(name)
	}
	e.Codes = make([]int, len(s.custom))
	for i, f := range s.custom {
		if e.Codes[i], err = f.Read(in); err != nil {
			return e, err
		}
	}
	return e, nil
}

// CustomCode reads the code of custom field i straight from an encoded entry.
func (s *FileIndexSchema) CustomCode(buf *bitio.BitBuffer, i int) (int, error) {
	v, err := buf.GetBits(s.offsets[i], s.custom[i].BitLength())
	return int(v), err
}

// VariantTypeCode reads the variant type code from an encoded entry.
func (s *FileIndexSchema) VariantTypeCode(buf *bitio.BitBuffer) (int, error) {
	v, err := buf.GetBits(1+s.filePositionBits, s.variantType.BitLength())
	return int(v), err
}

// FilePositionOf reads the file position from an encoded entry.
func (s *FileIndexSchema) FilePositionOf(buf *bitio.BitBuffer) (int, error) {
	v, err := buf.GetBits(1, s.filePositionBits)
	return int(v), err
}

// IsMultiFile reads the multi-file bit from an encoded entry.
func (s *FileIndexSchema) IsMultiFile(buf *bitio.BitBuffer) (bool, error) {
	return buf.Test(0)
}

// SetMultiFile sets the multi-file bit of an encoded entry in place.
func (s *FileIndexSchema) SetMultiFile(buf *bitio.BitBuffer, multi bool) error {
	return buf.SetBit(0, multi)
}

// EncodeAttributes builds a file index entry from raw attribute values keyed
// by field ID ("FILE:QUAL", "SAMPLE:DP", ...). Missing or non numeric range
// values encode as null.
func (s *FileIndexSchema) EncodeAttributes(filePosition int, vt variant.Type, attrs map[string]string) (*bitio.BitBuffer, error) {
	entry := FileIndexEntry{FilePosition: filePosition, VariantType: vt, Codes: make([]int, len(s.custom))}
	for i, f := range s.custom {
		raw, ok := attrs[f.Configuration().ID()]
		switch ff := f.(type) {
		case *field.CategoricalField:
			code, err := ff.Encode(raw)
			if err != nil {
				return nil, err
			}
			entry.Codes[i] = code
		case *field.CategoricalMultiValuedField:
			entry.Codes[i] = ff.Encode(splitValues(raw)...)
		case *field.RangeField:
			v, err := strconv.ParseFloat(raw, 64)
			if !ok || err != nil {
				entry.Codes[i] = ff.EncodeNull()
				continue
			}
			entry.Codes[i] = ff.Encode(v)
		}
	}
	return s.Encode(entry)
}

func splitValues(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ';' || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
