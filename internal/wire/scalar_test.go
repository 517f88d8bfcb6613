package wire

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "play.example.com", strings.Repeat("a", 300)}
	for _, s := range cases {
		var buf bytes.Buffer
		if err := WriteString(&buf, s); err != nil {
			t.Fatalf("write %q: %v", s, err)
		}
		got, err := ReadString(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("read %q: %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip mismatch: wrote %q, got %q", s, got)
		}
	}
}

func TestStringTooLongRejected(t *testing.T) {
	s := strings.Repeat("a", MaxStringCodeUnits+1)
	var buf bytes.Buffer
	if err := WriteString(&buf, s); err == nil {
		t.Fatal("expected WriteString to reject oversize string")
	}
}

func TestUint16RoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 25565, 65535} {
		var buf bytes.Buffer
		if err := WriteUint16(&buf, v); err != nil {
			t.Fatal(err)
		}
		got, err := ReadUint16(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: wrote %d, got %d", v, got)
		}
	}
}
