package wire

import "errors"

// Buffer errors
var (
	ErrFrameOverflow = errors.New("frame exceeds maximum size")
)

const (
	initialCapacity = 64

	// DefaultMaxFrame bounds a single outbound frame at what a 2-byte
	// var header can carry: 65535 payload bytes plus the tag and length
	// bytes. The worst legal sync frame (a full admission pass with its
	// mandatory appearance blocks) sits well under this. Growth beyond
	// the cap latches ErrFrameOverflow and the frame must be dropped,
	// never sent truncated.
	DefaultMaxFrame = 65535 + 3
)

// ByteOrder selects the byte order for multi-byte writes.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// Keystream produces one pseudo-random 32-bit value per call. Only the low
// byte is consumed, to obfuscate frame type tags.
type Keystream interface {
	Next() uint32
}

// Buffer is a growable byte store with two addressing modes: a byte cursor
// for ordinary writes and an MSB-first bit cursor between StartBitAccess and
// FinishBitAccess. All writes after an overflow are dropped whole; callers
// check Err (or the error from Bytes) before transmitting.
type Buffer struct {
	data   []byte
	pos    int
	bitPos int
	max    int
	stream Keystream

	headerOffset int
	headerWidth  int

	err error
}

// NewBuffer creates an empty frame buffer with the default size cap.
func NewBuffer() *Buffer {
	return NewBufferMax(DefaultMaxFrame)
}

// NewBufferMax creates an empty frame buffer capped at max bytes.
func NewBufferMax(max int) *Buffer {
	return &Buffer{
		data:         make([]byte, initialCapacity),
		max:          max,
		headerOffset: -1,
	}
}

// AttachKeystream attaches the tag-obfuscation keystream. A buffer without
// one writes tags in the clear (login responses, tests).
func (b *Buffer) AttachKeystream(ks Keystream) {
	b.stream = ks
}

// Len returns the number of payload bytes written so far.
func (b *Buffer) Len() int { return b.pos }

// Err returns the sticky write error, if any.
func (b *Buffer) Err() error { return b.err }

// Bytes returns the encoded frame, or the sticky error if any write
// overflowed the frame cap.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.data[:b.pos], nil
}

// Reset rewinds all cursors without releasing storage so the buffer can be
// reused for the next frame.
func (b *Buffer) Reset() {
	b.pos = 0
	b.bitPos = 0
	b.headerOffset = -1
	b.headerWidth = 0
	b.err = nil
}

// ensure grows the backing store (doubling) until at least n more bytes fit
// behind the byte cursor. Reports false after latching ErrFrameOverflow.
func (b *Buffer) ensure(n int) bool {
	return b.ensureTotal(b.pos + n)
}

func (b *Buffer) ensureTotal(total int) bool {
	if b.err != nil {
		return false
	}
	if total > b.max {
		b.err = ErrFrameOverflow
		return false
	}
	if total <= len(b.data) {
		return true
	}
	size := len(b.data)
	for size < total {
		size *= 2
	}
	if size > b.max {
		size = b.max
	}
	grown := make([]byte, size)
	copy(grown, b.data)
	b.data = grown
	return true
}

// WriteUint8 appends a single byte.
func (b *Buffer) WriteUint8(v uint8) {
	if !b.ensure(1) {
		return
	}
	b.data[b.pos] = v
	b.pos++
}

// WriteUint16 appends a 16-bit value in the given byte order.
func (b *Buffer) WriteUint16(v uint16, order ByteOrder) {
	if !b.ensure(2) {
		return
	}
	if order == LittleEndian {
		b.data[b.pos] = byte(v)
		b.data[b.pos+1] = byte(v >> 8)
	} else {
		b.data[b.pos] = byte(v >> 8)
		b.data[b.pos+1] = byte(v)
	}
	b.pos += 2
}

// WriteUint24 appends the low 24 bits of v, big-endian.
func (b *Buffer) WriteUint24(v uint32) {
	if !b.ensure(3) {
		return
	}
	b.data[b.pos] = byte(v >> 16)
	b.data[b.pos+1] = byte(v >> 8)
	b.data[b.pos+2] = byte(v)
	b.pos += 3
}

// WriteUint32 appends a 32-bit value in the given byte order.
func (b *Buffer) WriteUint32(v uint32, order ByteOrder) {
	if !b.ensure(4) {
		return
	}
	if order == LittleEndian {
		b.data[b.pos] = byte(v)
		b.data[b.pos+1] = byte(v >> 8)
		b.data[b.pos+2] = byte(v >> 16)
		b.data[b.pos+3] = byte(v >> 24)
	} else {
		b.data[b.pos] = byte(v >> 24)
		b.data[b.pos+1] = byte(v >> 16)
		b.data[b.pos+2] = byte(v >> 8)
		b.data[b.pos+3] = byte(v)
	}
	b.pos += 4
}

// WriteUint64 appends a 64-bit value. The protocol carries all 64-bit fields
// big-endian.
func (b *Buffer) WriteUint64(v uint64) {
	if !b.ensure(8) {
		return
	}
	for i := 0; i < 8; i++ {
		b.data[b.pos+i] = byte(v >> (56 - 8*i))
	}
	b.pos += 8
}

// WriteBytes appends raw bytes.
func (b *Buffer) WriteBytes(p []byte) {
	if !b.ensure(len(p)) {
		return
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
}

var bitMasks = func() [33]uint32 {
	var m [33]uint32
	for i := 1; i <= 32; i++ {
		m[i] = m[i-1]<<1 | 1
	}
	return m
}()

// StartBitAccess switches the buffer into bit mode, seeding the bit cursor
// at the current byte cursor.
func (b *Buffer) StartBitAccess() {
	b.bitPos = b.pos * 8
}

// FinishBitAccess rounds the byte cursor up past the last written bit. The
// unused tail bits of a partial final byte are never cleared, so a reused
// buffer may carry stale bits there; readers must not look past the last
// written bit.
func (b *Buffer) FinishBitAccess() {
	b.pos = (b.bitPos + 7) / 8
}

// WriteBits packs the low width bits of value MSB-first at the bit cursor,
// crossing byte boundaries as needed. Width must be in [1, 32].
func (b *Buffer) WriteBits(width int, value uint32) {
	if width < 1 || width > 32 {
		panic("wire: bit width out of range")
	}
	bytePos := b.bitPos >> 3
	bitOffset := 8 - (b.bitPos & 7)
	b.bitPos += width
	if !b.ensureTotal((b.bitPos + 7) / 8) {
		return
	}
	for ; width > bitOffset; bitOffset = 8 {
		b.data[bytePos] &^= byte(bitMasks[bitOffset])
		b.data[bytePos] |= byte((value >> uint(width-bitOffset)) & bitMasks[bitOffset])
		bytePos++
		width -= bitOffset
	}
	if width == bitOffset {
		b.data[bytePos] &^= byte(bitMasks[bitOffset])
		b.data[bytePos] |= byte(value & bitMasks[bitOffset])
	} else {
		b.data[bytePos] &^= byte(bitMasks[width] << uint(bitOffset-width))
		b.data[bytePos] |= byte((value & bitMasks[width]) << uint(bitOffset-width))
	}
}

// BeginVarHeader writes the frame type tag, obfuscated when a keystream is
// attached, followed by width placeholder length bytes. The payload length
// is not known until serialization completes; FinishVarHeader backfills it.
func (b *Buffer) BeginVarHeader(tag uint8, width int) {
	if width != 1 && width != 2 {
		panic("wire: header width must be 1 or 2")
	}
	if b.headerOffset >= 0 {
		panic("wire: variable header already open")
	}
	if b.stream != nil {
		tag += uint8(b.stream.Next())
	}
	b.WriteUint8(tag)
	b.headerOffset = b.pos
	b.headerWidth = width
	for i := 0; i < width; i++ {
		b.WriteUint8(0)
	}
}

// FinishVarHeader overwrites the placeholder with the big-endian count of
// payload bytes written since BeginVarHeader. Exactly one call per
// BeginVarHeader, after the whole payload including byte-aligned trailers.
func (b *Buffer) FinishVarHeader() {
	if b.headerOffset < 0 {
		panic("wire: no variable header open")
	}
	if b.err != nil {
		b.headerOffset = -1
		return
	}
	length := b.pos - (b.headerOffset + b.headerWidth)
	switch b.headerWidth {
	case 1:
		if length > 0xFF {
			b.err = ErrFrameOverflow
		} else {
			b.data[b.headerOffset] = byte(length)
		}
	case 2:
		if length > 0xFFFF {
			b.err = ErrFrameOverflow
		} else {
			b.data[b.headerOffset] = byte(length >> 8)
			b.data[b.headerOffset+1] = byte(length)
		}
	}
	b.headerOffset = -1
	b.headerWidth = 0
}
