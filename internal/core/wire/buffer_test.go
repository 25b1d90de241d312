package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_ByteWrites(t *testing.T) {
	b := NewBuffer()
	b.WriteUint8(0xAB)
	b.WriteUint16(0x1234, BigEndian)
	b.WriteUint16(0x1234, LittleEndian)
	b.WriteUint24(0xA1B2C3)
	b.WriteUint32(0xDEADBEEF, BigEndian)
	b.WriteUint64(0x0102030405060708)

	data, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xAB,
		0x12, 0x34,
		0x34, 0x12,
		0xA1, 0xB2, 0xC3,
		0xDE, 0xAD, 0xBE, 0xEF,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	}, data)

	r := NewReader(data)
	assert.Equal(t, uint8(0xAB), r.ReadUint8())
	assert.Equal(t, uint16(0x1234), r.ReadUint16(BigEndian))
	assert.Equal(t, uint16(0x1234), r.ReadUint16(LittleEndian))
	assert.Equal(t, uint32(0xA1B2C3), r.ReadUint24())
	assert.Equal(t, uint32(0xDEADBEEF), r.ReadUint32(BigEndian))
	assert.Equal(t, uint64(0x0102030405060708), r.ReadUint64())
	require.NoError(t, r.Err())
}

func TestBuffer_GrowsPastInitialCapacity(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 100; i++ {
		b.WriteUint32(uint32(i), BigEndian)
	}
	data, err := b.Bytes()
	require.NoError(t, err)
	require.Len(t, data, 400)

	r := NewReader(data)
	for i := 0; i < 100; i++ {
		require.Equal(t, uint32(i), r.ReadUint32(BigEndian))
	}
	require.NoError(t, r.Err())
}

func TestBuffer_OverflowLatchesError(t *testing.T) {
	b := NewBufferMax(8)
	b.WriteUint64(1)
	require.NoError(t, b.Err())

	b.WriteUint8(0xFF)
	require.ErrorIs(t, b.Err(), ErrFrameOverflow)

	// Later writes stay dropped whole; no partial state leaks out.
	b.WriteUint32(0xFFFFFFFF, BigEndian)
	_, err := b.Bytes()
	require.ErrorIs(t, err, ErrFrameOverflow)
}

func TestBuffer_BitRoundTrip(t *testing.T) {
	widths := []int{1, 2, 3, 5, 7, 8, 11, 13, 16, 21, 24, 31, 32}
	values := []uint32{0, 1, 0x5A5A5A5A, 0xFFFFFFFF}

	b := NewBuffer()
	b.StartBitAccess()
	for _, w := range widths {
		for _, v := range values {
			b.WriteBits(w, v)
		}
	}
	b.FinishBitAccess()

	data, err := b.Bytes()
	require.NoError(t, err)

	r := NewReader(data)
	r.StartBitAccess()
	for _, w := range widths {
		for _, v := range values {
			require.Equal(t, v&bitMasks[w], r.ReadBits(w),
				"width %d value %#x", w, v)
		}
	}
	require.NoError(t, r.Err())
}

func TestBuffer_BitsThenBytes(t *testing.T) {
	b := NewBuffer()
	b.WriteUint8(0x7F)
	b.StartBitAccess()
	b.WriteBits(3, 5)
	b.WriteBits(11, 2047)
	b.FinishBitAccess()
	b.WriteUint8(0x42)

	data, err := b.Bytes()
	require.NoError(t, err)
	// 1 leading byte + 14 bits padded to 2 bytes + 1 trailing byte.
	require.Len(t, data, 4)
	assert.Equal(t, byte(0x7F), data[0])
	assert.Equal(t, byte(0x42), data[3])

	r := NewReader(data)
	require.Equal(t, uint8(0x7F), r.ReadUint8())
	r.StartBitAccess()
	assert.Equal(t, uint32(5), r.ReadBits(3))
	assert.Equal(t, uint32(2047), r.ReadBits(11))
	r.FinishBitAccess()
	assert.Equal(t, uint8(0x42), r.ReadUint8())
}

func TestBuffer_WriteBitsWidthChecked(t *testing.T) {
	b := NewBuffer()
	b.StartBitAccess()
	require.Panics(t, func() { b.WriteBits(0, 0) })
	require.Panics(t, func() { b.WriteBits(33, 0) })
}

func TestBuffer_VarHeaderBackfill(t *testing.T) {
	for _, size := range []int{0, 1, 255, 256, 65535} {
		b := NewBufferMax(70000)
		b.BeginVarHeader(81, 2)
		for i := 0; i < size; i++ {
			b.WriteUint8(byte(i))
		}
		b.FinishVarHeader()

		data, err := b.Bytes()
		require.NoError(t, err, "payload size %d", size)
		require.Len(t, data, size+3)
		assert.Equal(t, byte(81), data[0])
		assert.Equal(t, size, int(data[1])<<8|int(data[2]), "payload size %d", size)
	}
}

func TestBuffer_VarHeaderSingleByteWidth(t *testing.T) {
	b := NewBuffer()
	b.BeginVarHeader(17, 1)
	b.WriteUint8(1)
	b.WriteUint8(2)
	b.FinishVarHeader()

	data, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{17, 2, 1, 2}, data)
}

func TestBuffer_VarHeaderInvariants(t *testing.T) {
	b := NewBuffer()
	require.Panics(t, func() { b.FinishVarHeader() }, "finish without begin")

	b.BeginVarHeader(81, 2)
	require.Panics(t, func() { b.BeginVarHeader(81, 2) }, "nested begin")
	b.FinishVarHeader()
	require.Panics(t, func() { b.FinishVarHeader() }, "double finish")
}

func TestBuffer_VarHeaderObfuscatesTag(t *testing.T) {
	seed := []uint32{1, 2, 3, 4}
	b := NewBuffer()
	b.AttachKeystream(NewIsaac(seed))
	b.BeginVarHeader(81, 2)
	b.WriteUint8(9)
	b.FinishVarHeader()

	data, err := b.Bytes()
	require.NoError(t, err)

	expected := byte(81 + uint8(NewIsaac(seed).Next()))
	assert.Equal(t, expected, data[0])
}

func TestBuffer_ResetReusesStorage(t *testing.T) {
	b := NewBuffer()
	b.BeginVarHeader(81, 2)
	b.WriteUint32(0xAAAAAAAA, BigEndian)
	b.FinishVarHeader()

	b.Reset()
	require.Equal(t, 0, b.Len())
	b.WriteUint8(0x11)
	data, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11}, data)
}
