package wire

import "errors"

// ErrShortRead reports a read past the end of the frame.
var ErrShortRead = errors.New("read past end of frame")

// Reader walks a received frame with the same dual cursor model as Buffer.
// The decode side lives on its own type so neither cursor can be misused
// against the other's backing store.
type Reader struct {
	data   []byte
	pos    int
	bitPos int
	err    error
}

// NewReader wraps a frame payload for decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the sticky read error, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = ErrShortRead
		return false
	}
	return true
}

// ReadUint8 consumes one byte.
func (r *Reader) ReadUint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

// ReadUint16 consumes a 16-bit value in the given byte order.
func (r *Reader) ReadUint16(order ByteOrder) uint16 {
	if !r.need(2) {
		return 0
	}
	var v uint16
	if order == LittleEndian {
		v = uint16(r.data[r.pos]) | uint16(r.data[r.pos+1])<<8
	} else {
		v = uint16(r.data[r.pos])<<8 | uint16(r.data[r.pos+1])
	}
	r.pos += 2
	return v
}

// ReadUint24 consumes a big-endian 24-bit value.
func (r *Reader) ReadUint24() uint32 {
	if !r.need(3) {
		return 0
	}
	v := uint32(r.data[r.pos])<<16 | uint32(r.data[r.pos+1])<<8 | uint32(r.data[r.pos+2])
	r.pos += 3
	return v
}

// ReadUint32 consumes a 32-bit value in the given byte order.
func (r *Reader) ReadUint32(order ByteOrder) uint32 {
	if !r.need(4) {
		return 0
	}
	var v uint32
	if order == LittleEndian {
		v = uint32(r.data[r.pos]) | uint32(r.data[r.pos+1])<<8 |
			uint32(r.data[r.pos+2])<<16 | uint32(r.data[r.pos+3])<<24
	} else {
		v = uint32(r.data[r.pos])<<24 | uint32(r.data[r.pos+1])<<16 |
			uint32(r.data[r.pos+2])<<8 | uint32(r.data[r.pos+3])
	}
	r.pos += 4
	return v
}

// ReadUint64 consumes a big-endian 64-bit value.
func (r *Reader) ReadUint64() uint64 {
	if !r.need(8) {
		return 0
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(r.data[r.pos+i])
	}
	r.pos += 8
	return v
}

// ReadBytes consumes n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p
}

// StartBitAccess switches the reader into bit mode at the byte cursor.
func (r *Reader) StartBitAccess() {
	r.bitPos = r.pos * 8
}

// FinishBitAccess rounds the byte cursor up past the last read bit.
func (r *Reader) FinishBitAccess() {
	r.pos = (r.bitPos + 7) / 8
}

// ReadBits unpacks width MSB-first bits at the bit cursor. Width must be in
// [1, 32].
func (r *Reader) ReadBits(width int) uint32 {
	if width < 1 || width > 32 {
		panic("wire: bit width out of range")
	}
	if r.err != nil {
		return 0
	}
	if (r.bitPos+width+7)/8 > len(r.data) {
		r.err = ErrShortRead
		return 0
	}
	bytePos := r.bitPos >> 3
	bitOffset := 8 - (r.bitPos & 7)
	r.bitPos += width
	var v uint32
	for ; width > bitOffset; bitOffset = 8 {
		v |= (uint32(r.data[bytePos]) & bitMasks[bitOffset]) << uint(width-bitOffset)
		bytePos++
		width -= bitOffset
	}
	if width == bitOffset {
		v |= uint32(r.data[bytePos]) & bitMasks[bitOffset]
	} else {
		v |= (uint32(r.data[bytePos]) >> uint(bitOffset-width)) & bitMasks[width]
	}
	return v
}
