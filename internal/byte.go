package internal

import "encoding/binary"

// Little-endian accessors at fixed offsets. The caller guarantees that
// b holds at least off+size bytes.

func LEUint16At(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

func LEUint32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

func LEUint64At(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

func PutLEUint16At(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

func PutLEUint32At(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

func PutLEUint64At(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}
