package wire

import "encoding/binary"

// readU8/readU16le/readU32le/readU64le/readBytes are offset-pointer byte
// readers in the style of the teacher's consensus/wire_read.go, reused
// verbatim since Bitcoin's little-endian fixed-width integer encoding is
// identical to Rubin's.

func readU8(b []byte, off *int) (uint8, error) {
	if *off+1 > len(b) {
		return 0, wireErr(ErrParse, "unexpected EOF (u8)")
	}
	v := b[*off]
	*off++
	return v, nil
}

func readU16le(b []byte, off *int) (uint16, error) {
	if *off+2 > len(b) {
		return 0, wireErr(ErrParse, "unexpected EOF (u16le)")
	}
	v := binary.LittleEndian.Uint16(b[*off : *off+2])
	*off += 2
	return v, nil
}

func readU32le(b []byte, off *int) (uint32, error) {
	if *off+4 > len(b) {
		return 0, wireErr(ErrParse, "unexpected EOF (u32le)")
	}
	v := binary.LittleEndian.Uint32(b[*off : *off+4])
	*off += 4
	return v, nil
}

func readU64le(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, wireErr(ErrParse, "unexpected EOF (u64le)")
	}
	v := binary.LittleEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func readI64le(b []byte, off *int) (int64, error) {
	v, err := readU64le(b, off)
	return int64(v), err
}

func readBytes(b []byte, off *int, n int) ([]byte, error) {
	if n < 0 {
		return nil, wireErr(ErrParse, "negative length")
	}
	if *off+n > len(b) {
		return nil, wireErr(ErrParse, "unexpected EOF (bytes)")
	}
	v := b[*off : *off+n]
	*off += n
	return v, nil
}

func readHash256(b []byte, off *int) ([32]byte, error) {
	var h [32]byte
	raw, err := readBytes(b, off, 32)
	if err != nil {
		return h, err
	}
	copy(h[:], raw)
	return h, nil
}

// DecodeCompactSize decodes one CompactSize value from the front of buf
// and reports how many bytes were consumed, for callers outside this
// package that need the varint decoder without the shared-cursor style
// the rest of this file uses (see store/encoding.go).
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	off := 0
	v, err := readCompactSize(buf, &off)
	return v, off, err
}

// readCompactSize decodes one Bitcoin CompactSize varint starting at *off,
// rejecting non-minimal encodings.
func readCompactSize(b []byte, off *int) (uint64, error) {
	prefix, err := readU8(b, off)
	if err != nil {
		return 0, err
	}
	switch {
	case prefix < 0xfd:
		return uint64(prefix), nil
	case prefix == 0xfd:
		v, err := readU16le(b, off)
		if err != nil {
			return 0, err
		}
		if v < 0xfd {
			return 0, wireErr(ErrNonMinimalSize, "non-minimal compactsize (u16)")
		}
		return uint64(v), nil
	case prefix == 0xfe:
		v, err := readU32le(b, off)
		if err != nil {
			return 0, err
		}
		if v <= 0xffff {
			return 0, wireErr(ErrNonMinimalSize, "non-minimal compactsize (u32)")
		}
		return uint64(v), nil
	default:
		v, err := readU64le(b, off)
		if err != nil {
			return 0, err
		}
		if v <= 0xffff_ffff {
			return 0, wireErr(ErrNonMinimalSize, "non-minimal compactsize (u64)")
		}
		return v, nil
	}
}
