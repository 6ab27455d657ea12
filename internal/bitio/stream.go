package bitio

// BitOutputStream appends bit fields to a growing buffer.
type BitOutputStream struct {
	buf    []byte
	bitLen int
}

// NewBitOutputStream returns a stream with room for capacityBits before growing.
func NewBitOutputStream(capacityBits int) *BitOutputStream {
	if capacityBits < 0 {
		capacityBits = 0
	}
	return &BitOutputStream{buf: make([]byte, 0, (capacityBits+7)/8)}
}

func (s *BitOutputStream) grow(bits int) {
	need := (s.bitLen + bits + 7) / 8
	for len(s.buf) < need {
		s.buf = append(s.buf, 0)
	}
}

// Write appends the low width bits of value.
func (s *BitOutputStream) Write(value uint32, width int) error {
	if width < 0 || width > MaxWidth {
		return &OutOfRangeError{BitOffset: s.bitLen, BitWidth: width, BitLength: s.bitLen}
	}
	s.grow(width)
	b := BitBuffer{buf: s.buf, bitLength: len(s.buf) * 8}
	if err := b.SetBits(value, s.bitLen, width); err != nil {
		return err
	}
	s.bitLen += width
	return nil
}

// WriteBuffer appends every logical bit of src.
func (s *BitOutputStream) WriteBuffer(src *BitBuffer) error {
	s.grow(src.bitLength)
	b := BitBuffer{buf: s.buf, bitLength: len(s.buf) * 8}
	if err := b.SetBitBuffer(src, s.bitLen); err != nil {
		return err
	}
	s.bitLen += src.bitLength
	return nil
}

// BitLength returns the number of bits written so far.
func (s *BitOutputStream) BitLength() int { return s.bitLen }

// Bytes returns a copy of the written bytes, padded with zero bits.
func (s *BitOutputStream) Bytes() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// BitInputStream reads bit fields sequentially.
type BitInputStream struct {
	buf   *BitBuffer
	pos   int
	limit int
}

// NewBitInputStream reads all bits of data.
func NewBitInputStream(data []byte) *BitInputStream {
	return &BitInputStream{buf: WrapBitBuffer(data), limit: len(data) * 8}
}

// NewBitInputStreamLen reads the first bitLength bits of data.
func NewBitInputStreamLen(data []byte, bitLength int) *BitInputStream {
	s := NewBitInputStream(data)
	if bitLength < s.limit {
		s.limit = bitLength
	}
	return s
}

func (s *BitInputStream) check(width int) error {
	if width < 0 || s.pos+width > s.limit {
		return &OutOfRangeError{BitOffset: s.pos, BitWidth: width, BitLength: s.limit}
	}
	return nil
}

// Read consumes width bits.
func (s *BitInputStream) Read(width int) (uint32, error) {
	if err := s.check(width); err != nil {
		return 0, err
	}
	v, err := s.buf.GetBits(s.pos, width)
	if err != nil {
		return 0, err
	}
	s.pos += width
	return v, nil
}

// ReadBuffer consumes width bits into a new BitBuffer.
func (s *BitInputStream) ReadBuffer(width int) (*BitBuffer, error) {
	if err := s.check(width); err != nil {
		return nil, err
	}
	out, err := s.buf.GetBitBuffer(s.pos, width)
	if err != nil {
		return nil, err
	}
	s.pos += width
	return out, nil
}

// Skip advances the cursor by width bits.
func (s *BitInputStream) Skip(width int) error {
	if err := s.check(width); err != nil {
		return err
	}
	s.pos += width
	return nil
}

// Position returns the cursor offset in bits.
func (s *BitInputStream) Position() int { return s.pos }

// RemainingBits returns the number of unread bits.
func (s *BitInputStream) RemainingBits() int { return s.limit - s.pos }
