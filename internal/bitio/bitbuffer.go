package bitio

import (
	"errors"
	"fmt"
	"strings"
)

// MaxWidth is the widest field that can be read or written in one call.
const MaxWidth = 32

// ErrOutOfRange is returned when a read or write touches bits outside the buffer.
var ErrOutOfRange = errors.New("bit range out of bounds")

// OutOfRangeError describes an invalid bit access.
type OutOfRangeError struct {
	BitOffset int
	BitWidth  int
	BitLength int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("bit range out of bounds: offset %d, width %d, length %d", e.BitOffset, e.BitWidth, e.BitLength)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// BitBuffer is a byte slice with bit-addressable access.
type BitBuffer struct {
	buf       []byte
	bitLength int
}

// NewBitBuffer allocates a zeroed buffer able to hold bitLength bits.
func NewBitBuffer(bitLength int) *BitBuffer {
	if bitLength < 0 {
		bitLength = 0
	}
	return &BitBuffer{
		buf:       make([]byte, (bitLength+7)/8),
		bitLength: bitLength,
	}
}

// WrapBitBuffer wraps b without copying. The logical length is len(b)*8.
func WrapBitBuffer(b []byte) *BitBuffer {
	return &BitBuffer{buf: b, bitLength: len(b) * 8}
}

// WrapBitBufferLen wraps b without copying, with a logical length of bitLength.
func WrapBitBufferLen(b []byte, bitLength int) *BitBuffer {
	if bitLength > len(b)*8 {
		bitLength = len(b) * 8
	}
	return &BitBuffer{buf: b, bitLength: bitLength}
}

// BitLength returns the logical length in bits.
func (b *BitBuffer) BitLength() int { return b.bitLength }

// Bytes returns the underlying bytes. The slice must not be modified after the
// buffer has been handed to a reader.
func (b *BitBuffer) Bytes() []byte { return b.buf }

// Clone returns a deep copy.
func (b *BitBuffer) Clone() *BitBuffer {
	c := make([]byte, len(b.buf))
	copy(c, b.buf)
	return &BitBuffer{buf: c, bitLength: b.bitLength}
}

// Equal reports whether both buffers have the same length and bits.
func (b *BitBuffer) Equal(o *BitBuffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.bitLength != o.bitLength {
		return false
	}
	for i := 0; i < b.bitLength; i += MaxWidth {
		w := min(MaxWidth, b.bitLength-i)
		x, _ := b.GetBits(i, w)
		y, _ := o.GetBits(i, w)
		if x != y {
			return false
		}
	}
	return true
}

func (b *BitBuffer) check(offset, width int) error {
	if offset < 0 || width < 0 || width > MaxWidth || offset+width > len(b.buf)*8 {
		return &OutOfRangeError{BitOffset: offset, BitWidth: width, BitLength: len(b.buf) * 8}
	}
	return nil
}

// SetBits writes the low width bits of value at bitOffset.
// Bits outside [bitOffset, bitOffset+width) are left untouched.
func (b *BitBuffer) SetBits(value uint32, bitOffset, width int) error {
	if err := b.check(bitOffset, width); err != nil {
		return err
	}
	for width > 0 {
		idx := bitOffset >> 3
		shift := bitOffset & 7
		n := min(8-shift, width)
		mask := byte((1<<n)-1) << shift
		b.buf[idx] = b.buf[idx]&^mask | byte(value<<shift)&mask
		value >>= n
		bitOffset += n
		width -= n
	}
	return nil
}

// SetBitsPartial writes width bits of value, starting at bit valueOffset of
// the value, at bitOffset.
func (b *BitBuffer) SetBitsPartial(value uint32, bitOffset, width, valueOffset int) error {
	if valueOffset < 0 || valueOffset+width > MaxWidth {
		return &OutOfRangeError{BitOffset: valueOffset, BitWidth: width, BitLength: MaxWidth}
	}
	return b.SetBits(value>>valueOffset, bitOffset, width)
}

// GetBits reads width bits at bitOffset. Bits never written read as zero.
func (b *BitBuffer) GetBits(bitOffset, width int) (uint32, error) {
	if err := b.check(bitOffset, width); err != nil {
		return 0, err
	}
	var v uint32
	pos := 0
	for width > 0 {
		idx := bitOffset >> 3
		shift := bitOffset & 7
		n := min(8-shift, width)
		mask := byte((1<<n)-1) << shift
		v |= uint32((b.buf[idx]&mask)>>shift) << pos
		pos += n
		bitOffset += n
		width -= n
	}
	return v, nil
}

// SetByte writes all eight bits of v at bitOffset.
func (b *BitBuffer) SetByte(v byte, bitOffset int) error {
	return b.SetBits(uint32(v), bitOffset, 8)
}

// SetBytePartial writes the low width bits of v at bitOffset.
func (b *BitBuffer) SetBytePartial(v byte, bitOffset, width int) error {
	if width > 8 {
		return &OutOfRangeError{BitOffset: bitOffset, BitWidth: width, BitLength: len(b.buf) * 8}
	}
	return b.SetBits(uint32(v), bitOffset, width)
}

// GetByte reads eight bits at bitOffset.
func (b *BitBuffer) GetByte(bitOffset int) (byte, error) {
	v, err := b.GetBits(bitOffset, 8)
	return byte(v), err
}

// GetBytePartial reads width (<= 8) bits at bitOffset.
func (b *BitBuffer) GetBytePartial(bitOffset, width int) (byte, error) {
	if width > 8 {
		return 0, &OutOfRangeError{BitOffset: bitOffset, BitWidth: width, BitLength: len(b.buf) * 8}
	}
	v, err := b.GetBits(bitOffset, width)
	return byte(v), err
}

// SetBit sets or clears a single bit.
func (b *BitBuffer) SetBit(bitOffset int, on bool) error {
	var v uint32
	if on {
		v = 1
	}
	return b.SetBits(v, bitOffset, 1)
}

// Test reports whether the bit at bitOffset is set.
func (b *BitBuffer) Test(bitOffset int) (bool, error) {
	v, err := b.GetBits(bitOffset, 1)
	return v == 1, err
}

// SetBitBuffer copies all bits of src into b at bitOffset.
func (b *BitBuffer) SetBitBuffer(src *BitBuffer, bitOffset int) error {
	for i := 0; i < src.bitLength; i += MaxWidth {
		w := min(MaxWidth, src.bitLength-i)
		v, err := src.GetBits(i, w)
		if err != nil {
			return err
		}
		if err := b.SetBits(v, bitOffset+i, w); err != nil {
			return err
		}
	}
	return nil
}

// GetBitBuffer returns a copy of width bits starting at bitOffset.
func (b *BitBuffer) GetBitBuffer(bitOffset, width int) (*BitBuffer, error) {
	if bitOffset < 0 || width < 0 || bitOffset+width > len(b.buf)*8 {
		return nil, &OutOfRangeError{BitOffset: bitOffset, BitWidth: width, BitLength: len(b.buf) * 8}
	}
	out := NewBitBuffer(width)
	for i := 0; i < width; i += MaxWidth {
		w := min(MaxWidth, width-i)
		v, err := b.GetBits(bitOffset+i, w)
		if err != nil {
			return nil, err
		}
		if err := out.SetBits(v, i, w); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// String renders the logical bits, lowest offset first.
func (b *BitBuffer) String() string {
	var sb strings.Builder
	sb.Grow(b.bitLength)
	for i := 0; i < b.bitLength; i++ {
		if on, _ := b.Test(i); on {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
