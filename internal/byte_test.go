package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLittleEndianAt(t *testing.T) {
	b := make([]byte, 16)

	PutLEUint64At(b, 1, 0x0102030405060708)
	assert.Equal(t, []byte{0x00, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b[:9])
	assert.Equal(t, uint64(0x0102030405060708), LEUint64At(b, 1))

	PutLEUint32At(b, 9, 0xdeadbeef)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, b[9:13])
	assert.Equal(t, uint32(0xdeadbeef), LEUint32At(b, 9))

	PutLEUint16At(b, 13, 0x1234)
	assert.Equal(t, []byte{0x34, 0x12}, b[13:15])
	assert.Equal(t, uint16(0x1234), LEUint16At(b, 13))
}

func TestLittleEndianAtOutOfRange(t *testing.T) {
	b := make([]byte, 4)
	assert.Panics(t, func() { LEUint64At(b, 0) })
	assert.Panics(t, func() { PutLEUint32At(b, 1, 1) })
}
