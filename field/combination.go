package field

import (
	"fmt"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sampleidx/internal/bitio"
)

// Combination is one co-occurrence of values across dimensions, expressed as
// bit indexes of the dimension fields. Z is -1 when the third dimension has no
// value.
type Combination struct {
	X, Y, Z int
}

// CombinationField stores which values of X, Y and optionally Z co-occur.
//
// For entry codes (x, y, z) the field writes a popcount(x) by popcount(y)
// matrix. Each cell holds 1 + popcount(z) bits: bit 0 marks the (x, y) pair as
// present and the remaining bits mark the z values seen with that pair. Without
// a Z dimension every cell is a single presence bit.
type CombinationField struct {
	key     string
	x, y, z *CategoricalMultiValuedField
}

// NewCombination joins two or three multi-valued fields. z may be nil.
func NewCombination(key string, x, y, z *CategoricalMultiValuedField) *CombinationField {
	return &CombinationField{key: key, x: x, y: y, z: z}
}

func (f *CombinationField) Key() string                     { return f.key }
func (f *CombinationField) X() *CategoricalMultiValuedField { return f.x }
func (f *CombinationField) Y() *CategoricalMultiValuedField { return f.y }
func (f *CombinationField) Z() *CategoricalMultiValuedField { return f.z }

func (f *CombinationField) cellBits(zCode int) int {
	if f.z == nil {
		return 1
	}
	return 1 + bits.OnesCount(uint(zCode))
}

// BitLength returns the matrix size for the given dimension codes.
func (f *CombinationField) BitLength(xCode, yCode, zCode int) int {
	return bits.OnesCount(uint(xCode)) * bits.OnesCount(uint(yCode)) * f.cellBits(zCode)
}

// rank returns the position of bit b among the set bits of code.
func rank(code, b int) int {
	return bits.OnesCount(uint(code) & (1<<b - 1))
}

// Encode writes the matrix of combos. The dimension codes are derived from the
// combinations and returned alongside the matrix.
func (f *CombinationField) Encode(combos []Combination) (xCode, yCode, zCode int, matrix *bitio.BitBuffer, err error) {
	for _, c := range combos {
		xCode |= 1 << c.X
		yCode |= 1 << c.Y
		if f.z != nil && c.Z >= 0 {
			zCode |= 1 << c.Z
		}
	}
	matrix, err = f.EncodeMatrix(xCode, yCode, zCode, combos)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	return xCode, yCode, zCode, matrix, nil
}

// EncodeMatrix writes the matrix of combos laid out for the given dimension
// codes. Combinations using bits absent from the codes are skipped.
func (f *CombinationField) EncodeMatrix(xCode, yCode, zCode int, combos []Combination) (*bitio.BitBuffer, error) {
	matrix := bitio.NewBitBuffer(f.BitLength(xCode, yCode, zCode))
	cell := f.cellBits(zCode)
	numY := bits.OnesCount(uint(yCode))
	for _, c := range combos {
		if xCode&(1<<c.X) == 0 || yCode&(1<<c.Y) == 0 {
			continue
		}
		off := (rank(xCode, c.X)*numY + rank(yCode, c.Y)) * cell
		if err := matrix.SetBit(off, true); err != nil {
			return nil, err
		}
		if f.z != nil && c.Z >= 0 && zCode&(1<<c.Z) != 0 {
			if err := matrix.SetBit(off+1+rank(zCode, c.Z), true); err != nil {
				return nil, err
			}
		}
	}
	return matrix, nil
}

// Read consumes one matrix from in.
func (f *CombinationField) Read(in *bitio.BitInputStream, xCode, yCode, zCode int) (*bitio.BitBuffer, error) {
	return in.ReadBuffer(f.BitLength(xCode, yCode, zCode))
}

// Write appends matrix to out.
func (f *CombinationField) Write(matrix *bitio.BitBuffer, out *bitio.BitOutputStream) error {
	return out.WriteBuffer(matrix)
}

// BuildFilter combines per-dimension filters. Nil filters are treated as no-op.
func (f *CombinationField) BuildFilter(fx, fy, fz Filter) *CombinationFilter {
	if fx == nil {
		fx = NewNoOpFilter(f.x)
	}
	if fy == nil {
		fy = NewNoOpFilter(f.y)
	}
	if fz == nil && f.z != nil {
		fz = NewNoOpFilter(f.z)
	}
	cf := &CombinationFilter{field: f, fx: fx, fy: fy, fz: fz, accepted: roaring.New()}
	numY := len(f.y.values)
	numZ := 1
	if f.z != nil {
		numZ = len(f.z.values) + 1
	}
	for xb := range f.x.values {
		if !fx.Test(1 << xb) {
			continue
		}
		for yb := range f.y.values {
			if !fy.Test(1 << yb) {
				continue
			}
			if f.z == nil || fz.IsNoOp() {
				cf.accepted.Add(uint32((xb*numY+yb)*numZ + 0))
				continue
			}
			for zb := range f.z.values {
				if fz.Test(1 << zb) {
					cf.accepted.Add(uint32((xb*numY+yb)*numZ + 1 + zb))
				}
			}
		}
	}
	return cf
}

// CombinationFilter tests combination matrices against per-dimension filters.
type CombinationFilter struct {
	field      *CombinationField
	fx, fy, fz Filter
	// accepted holds joint coordinates (x, y, 0) for pair matches and
	// (x, y, 1+z) for triple matches.
	accepted *roaring.Bitmap
}

// IsNoOp reports whether every dimension filter is a no-op.
func (f *CombinationFilter) IsNoOp() bool {
	return f.fx.IsNoOp() && f.fy.IsNoOp() && (f.fz == nil || f.fz.IsNoOp())
}

// IsExactFilter reports whether every dimension filter is exact.
func (f *CombinationFilter) IsExactFilter() bool {
	return f.fx.IsExactFilter() && f.fy.IsExactFilter() && (f.fz == nil || f.fz.IsExactFilter())
}

// Test reports whether any stored combination passes all dimension filters.
func (f *CombinationFilter) Test(xCode, yCode, zCode int, matrix *bitio.BitBuffer) bool {
	fld := f.field
	numY := len(fld.y.values)
	numZ := 1
	if fld.z != nil {
		numZ = len(fld.z.values) + 1
	}
	cell := fld.cellBits(zCode)
	cy := bits.OnesCount(uint(yCode))
	useZ := fld.z != nil && !f.fz.IsNoOp()

	i := 0
	for xs := uint(xCode); xs != 0; xs &= xs - 1 {
		xb := bits.TrailingZeros(xs)
		j := 0
		for ys := uint(yCode); ys != 0; ys &= ys - 1 {
			yb := bits.TrailingZeros(ys)
			off := (i*cy + j) * cell
			j++
			if present, err := matrix.Test(off); err != nil || !present {
				continue
			}
			base := uint32((xb*numY + yb) * numZ)
			if !useZ {
				if f.accepted.Contains(base) {
					return true
				}
				continue
			}
			k := 0
			for zs := uint(zCode); zs != 0; zs &= zs - 1 {
				zb := bits.TrailingZeros(zs)
				if on, err := matrix.Test(off + 1 + k); err == nil && on && f.accepted.Contains(base+1+uint32(zb)) {
					return true
				}
				k++
			}
		}
		i++
	}
	return false
}

func (f *CombinationFilter) String() string {
	z := "-"
	if f.fz != nil {
		z = f.fz.String()
	}
	return fmt.Sprintf("%s{%s ; %s ; %s}", f.field.key, f.fx, f.fy, z)
}
