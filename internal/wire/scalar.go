package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"unicode/utf16"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// MaxStringCodeUnits is the maximum UTF-16 length a Minecraft string
// scalar may carry; longer strings fail the codec.
const MaxStringCodeUnits = 32767

// ReadString reads a VarInt-length-prefixed UTF-8 string from r. r must
// also satisfy io.ByteReader (wrap with bufio.NewReader if it doesn't).
func ReadString(r *bufio.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", perrors.New(perrors.ProtocolMalformed, "negative string length")
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	s := string(buf)
	if utf16Len(s) > MaxStringCodeUnits {
		return "", perrors.New(perrors.ProtocolMalformed, "string exceeds 32767 code units")
	}
	return s, nil
}

// WriteString writes s as a VarInt-length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	if utf16Len(s) > MaxStringCodeUnits {
		return perrors.New(perrors.ProtocolMalformed, "string exceeds 32767 code units")
	}
	b := []byte(s)
	if err := WriteVarInt(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// ReadUint16 reads a big-endian unsigned 16-bit scalar (e.g. server port).
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// WriteUint16 writes a big-endian unsigned 16-bit scalar.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadBool reads a single-byte boolean.
func ReadBool(r io.ByteReader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// WriteBool writes a single-byte boolean.
func WriteBool(w io.Writer, v bool) error {
	var b byte
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

// ReadUUID reads 16 raw bytes representing a UUID.
func ReadUUID(r io.Reader) ([16]byte, error) {
	var buf [16]byte
	_, err := io.ReadFull(r, buf[:])
	return buf, err
}

// WriteUUID writes 16 raw bytes representing a UUID.
func WriteUUID(w io.Writer, id [16]byte) error {
	_, err := w.Write(id[:])
	return err
}

// ReadBytes reads a VarInt-length-prefixed byte array (used by
// encryption-response's encrypted secret/verify-token fields).
func ReadBytes(r *bufio.Reader) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 65536 {
		return nil, perrors.New(perrors.ProtocolMalformed, "byte array length out of range")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteBytes writes a VarInt-length-prefixed byte array.
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
