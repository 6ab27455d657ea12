package bitio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitBufferRoundTrip(t *testing.T) {
	tests := []struct {
		offset int
		width  int
		value  uint32
	}{
		{0, 1, 1},
		{3, 5, 0x1F},
		{7, 2, 0x2},
		{6, 12, 0xABC},
		{13, 32, 0xDEADBEEF},
		{40, 8, 0x81},
		{1, 0, 0},
	}

	for _, tt := range tests {
		b := NewBitBuffer(96)
		// Sentinel fields on both sides of the written span.
		if tt.offset > 0 {
			require.NoError(t, b.SetBits(0xFFFFFFFF, max(0, tt.offset-min(tt.offset, 32)), min(tt.offset, 32)))
		}
		after := tt.offset + tt.width
		require.NoError(t, b.SetBits(0xFFFFFFFF, after, min(32, 96-after)))

		require.NoError(t, b.SetBits(tt.value, tt.offset, tt.width))

		got, err := b.GetBits(tt.offset, tt.width)
		require.NoError(t, err)
		assert.Equal(t, tt.value, got, "offset=%d width=%d", tt.offset, tt.width)

		if tt.offset > 0 {
			w := min(tt.offset, 32)
			before, err := b.GetBits(tt.offset-w, w)
			require.NoError(t, err)
			assert.Equal(t, uint32(1<<w-1), before)
		}
		rest, err := b.GetBits(after, min(32, 96-after))
		require.NoError(t, err)
		assert.Equal(t, uint32(1<<min(32, 96-after)-1), rest)
	}
}

func TestBitBufferAdjacentFields(t *testing.T) {
	b := NewBitBuffer(16)
	require.NoError(t, b.SetBits(0x5, 0, 3))
	require.NoError(t, b.SetBits(0x1A, 3, 5))
	require.NoError(t, b.SetBits(0x3, 8, 2))
	require.NoError(t, b.SetBits(0x0, 3, 5))

	v, err := b.GetBits(0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x5), v)

	v, err = b.GetBits(8, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3), v)
}

func TestBitBufferUnwrittenBitsReadZero(t *testing.T) {
	b := NewBitBuffer(24)
	require.NoError(t, b.SetBits(0x3, 4, 2))

	v, err := b.GetBits(4, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3), v)
}

func TestBitBufferOutOfRange(t *testing.T) {
	b := NewBitBuffer(10)

	_, err := b.GetBits(14, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	var oe *OutOfRangeError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 14, oe.BitOffset)

	assert.Error(t, b.SetBits(1, -1, 1))
	assert.Error(t, b.SetBits(1, 0, 33))
}

func TestBitBufferPartial(t *testing.T) {
	b := NewBitBuffer(16)
	require.NoError(t, b.SetBytePartial(0xFF, 2, 5))
	got, err := b.GetBytePartial(2, 5)
	require.NoError(t, err)
	assert.Equal(t, byte(0x1F), got)

	full, err := b.GetByte(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7C), full)

	require.NoError(t, b.SetBitsPartial(0xF0, 9, 4, 4))
	v, err := b.GetBits(9, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xF), v)
}

func TestBitBufferCopy(t *testing.T) {
	src := NewBitBuffer(40)
	require.NoError(t, src.SetBits(0xCAFEBABE, 3, 32))

	dst := NewBitBuffer(64)
	require.NoError(t, dst.SetBitBuffer(src, 11))

	sub, err := dst.GetBitBuffer(11, 40)
	require.NoError(t, err)
	assert.True(t, sub.Equal(src))
	assert.Equal(t, src.String(), sub.String())
}
