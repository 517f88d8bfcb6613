package wire

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
)

func TestCFB8RoundTrip(t *testing.T) {
	secret := make([]byte, 16)
	_, _ = rand.Read(secret)

	plaintext := bytes.Repeat([]byte("the quick brown fox jumps"), 50)

	var wire bytes.Buffer
	encSide, err := NewCFB8Conn(nil, &wire, secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := encSide.Write(plaintext); err != nil {
		t.Fatal(err)
	}

	decSide, err := NewCFB8Conn(bytes.NewReader(wire.Bytes()), nil, secret)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(plaintext))
	if _, err := io.ReadFull(decSide, got); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestCFB8ProgressPreserving(t *testing.T) {
	secret := make([]byte, 16)
	_, _ = rand.Read(secret)
	plaintext := []byte("partial-reads-should-still-decode-correctly-byte-by-byte")

	var wire bytes.Buffer
	encSide, _ := NewCFB8Conn(nil, &wire, secret)
	_, _ = encSide.Write(plaintext)

	decSide, _ := NewCFB8Conn(bytes.NewReader(wire.Bytes()), nil, secret)
	got := make([]byte, 0, len(plaintext))
	buf := make([]byte, 3) // small reads to exercise partial decode
	for len(got) < len(plaintext) {
		n, err := decSide.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatal(err)
		}
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("progressive decode mismatch: got %q want %q", got, plaintext)
	}
}

func TestCFB8RequiresSixteenByteSecret(t *testing.T) {
	if _, err := NewCFB8Conn(nil, nil, []byte("short")); err == nil {
		t.Fatal("expected error for non-16-byte secret")
	}
}
