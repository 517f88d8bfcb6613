package crypto

import (
	"crypto/sha1" //nolint:gosec // test vector generation, matches production usage
	"testing"
)

func TestServerIDHashKnownVectors(t *testing.T) {
	// Vectors from the Minecraft protocol documentation (wiki.vg), where
	// the server id is empty and the "shared secret"/"public key" inputs
	// are simply the notchian reference strings.
	cases := []struct {
		input string
		want  string
	}{
		{"Notch", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48"},
		{"jeb_", "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1"},
		{"simon", "88e16a1019277b15d58faf0541e11910eb756f6"},
	}
	for _, c := range cases {
		got := signedHex(shaSum(c.input))
		if got != c.want {
			t.Errorf("signedHex(sha1(%q)) = %s, want %s", c.input, got, c.want)
		}
	}
}

func shaSum(s string) []byte {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(s))
	return h.Sum(nil)
}

func TestServerIDHashDeterministic(t *testing.T) {
	secret := []byte("0123456789abcdef")
	der := []byte("fake-der-bytes")
	a := ServerIDHash("", secret, der)
	b := ServerIDHash("", secret, der)
	if a != b {
		t.Fatalf("ServerIDHash not deterministic: %s vs %s", a, b)
	}
	if c := ServerIDHash("other", secret, der); c == a {
		t.Fatalf("ServerIDHash ignored server_id input")
	}
}
