package wire

import "encoding/binary"

// AppendU32le/AppendU64le/AppendCompactSize mirror the teacher's
// consensus/wire_write.go and compactsize_write.go append-style encoders.

func AppendU16le(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

func AppendU32le(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func AppendU64le(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return AppendU16le(dst, uint16(n))
	case n <= 0xffff_ffff:
		dst = append(dst, 0xfe)
		return AppendU32le(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return AppendU64le(dst, n)
	}
}
