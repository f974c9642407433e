package asm

import "encoding/binary"

// Little-endian append/read helpers shared by the consensus encodings, the
// section codecs of the subprotocols, and the storage layer. The readers
// assume the caller has already bounds-checked.

func AppendU16(out []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(out, b[:]...)
}

func AppendU32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func AppendU64(out []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(out, b[:]...)
}

func ReadU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func ReadU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func ReadU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
