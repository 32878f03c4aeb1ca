package exe2dll

import "encoding/binary"

func AlignValueUp(value, alignment uint32) uint32 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// CheckSize reports whether [off, off+n) fits in a buffer of the given size.
func CheckSize(size int, off, n uint64) bool {
	return off <= uint64(size) && n <= uint64(size)-off
}

func u16(b []byte, off int) (uint16, bool) {
	if !CheckSize(len(b), uint64(off), 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[off:]), true
}

func u32(b []byte, off int) (uint32, bool) {
	if !CheckSize(len(b), uint64(off), 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[off:]), true
}

func putU16(b []byte, off int, v uint16) bool {
	if !CheckSize(len(b), uint64(off), 2) {
		return false
	}
	binary.LittleEndian.PutUint16(b[off:], v)
	return true
}

func putU32(b []byte, off int, v uint32) bool {
	if !CheckSize(len(b), uint64(off), 4) {
		return false
	}
	binary.LittleEndian.PutUint32(b[off:], v)
	return true
}

func cstring(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
