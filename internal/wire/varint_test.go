package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 127, 128, 255, 2097151, 2097152, 25565, -2147483648, 2147483647}
	for _, v := range cases {
		var buf bytes.Buffer
		if err := WriteVarInt(&buf, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		if buf.Len() > 5 {
			t.Fatalf("varint for %d exceeds 5 bytes: %d", v, buf.Len())
		}
		got, err := ReadVarInt(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: wrote %d, read %d", v, got)
		}
	}
}

func TestVarIntFifthByteContinuationMustBeClear(t *testing.T) {
	// 5 bytes, all with continuation bit set: malformed.
	raw := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := ReadVarInt(bufio.NewReader(bytes.NewReader(raw)))
	if err == nil {
		t.Fatal("expected error for varint exceeding 5 bytes")
	}
}

func TestVarIntSizeMatchesEncodedLength(t *testing.T) {
	for _, v := range []int32{0, 1, 127, 128, 16384, 2097151, 2147483647} {
		var buf bytes.Buffer
		_ = WriteVarInt(&buf, v)
		if got := VarIntSize(v); got != buf.Len() {
			t.Fatalf("VarIntSize(%d) = %d, want %d", v, got, buf.Len())
		}
	}
}
