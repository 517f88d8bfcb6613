// Package wire implements the Minecraft framed wire protocol: variable
// length integers, length-prefixed strings and scalars, frame
// length-prefixing, and the compression/encryption layers that wrap it.
package wire

import (
	"io"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

const (
	// maxVarIntBytes is the maximum byte length of a 32-bit VarInt.
	maxVarIntBytes = 5
	segmentBits    = 0x7F
	continueBit    = 0x80
)

// ReadVarInt reads a Minecraft VarInt from r. The 5th byte's continuation
// bit must be clear; otherwise the value is malformed.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var value int32
	var position uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		value |= int32(b&segmentBits) << position
		position += 7

		if b&continueBit == 0 {
			return value, nil
		}

		if position >= maxVarIntBytes*7 {
			return 0, perrors.New(perrors.ProtocolMalformed, "varint exceeds 5 bytes")
		}
	}
}

// WriteVarInt writes v to w in Minecraft VarInt encoding.
func WriteVarInt(w io.Writer, v int32) error {
	var buf [maxVarIntBytes]byte
	n := PutVarInt(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// PutVarInt encodes v into buf (which must be at least 5 bytes) and
// returns the number of bytes written.
func PutVarInt(buf []byte, v int32) int {
	u := uint32(v)
	n := 0
	for {
		b := byte(u & segmentBits)
		u >>= 7
		if u != 0 {
			b |= continueBit
		}
		buf[n] = b
		n++
		if u == 0 {
			return n
		}
	}
}

// VarIntSize returns the number of bytes WriteVarInt would emit for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >>= 7; u != 0; u >>= 7 {
		n++
	}
	return n
}
