package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
)

// CFB8Conn wraps a byte stream with AES-CFB8 encryption, using the shared
// secret as both key and IV as Minecraft's protocol requires. One
// CFB8Conn serves one leg of one session: Read decrypts and Write
// encrypts, each with its own shift register seeded from the same key+IV.
type CFB8Conn struct {
	r io.Reader
	w io.Writer

	block     cipher.Block
	encShift  []byte
	decShift  []byte
}

// NewCFB8Conn installs AES-CFB8 on top of rw using the 16-byte shared
// secret as both key and IV.
func NewCFB8Conn(r io.Reader, w io.Writer, sharedSecret []byte) (*CFB8Conn, error) {
	if len(sharedSecret) != 16 {
		return nil, fmt.Errorf("wire: shared secret must be 16 bytes, got %d", len(sharedSecret))
	}
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, err
	}
	encShift := make([]byte, 16)
	decShift := make([]byte, 16)
	copy(encShift, sharedSecret)
	copy(decShift, sharedSecret)
	return &CFB8Conn{r: r, w: w, block: block, encShift: encShift, decShift: decShift}, nil
}

// Read decrypts the next len(p) bytes off the underlying reader in place.
func (c *CFB8Conn) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.decrypt(p[:n])
	}
	return n, err
}

// Write encrypts p and writes it to the underlying writer.
func (c *CFB8Conn) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	copy(out, p)
	c.encrypt(out)
	_, err := c.w.Write(out)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// decrypt applies the CFB-8 decrypt transform byte-by-byte: each keystream
// byte is AES-encrypt(shift register)[0], the ciphertext byte is XORed to
// recover plaintext, and the shift register advances by the ciphertext
// byte (not the plaintext byte).
func (c *CFB8Conn) decrypt(p []byte) {
	var scratch [16]byte
	for i := range p {
		c.block.Encrypt(scratch[:], c.decShift)
		ct := p[i]
		p[i] = ct ^ scratch[0]
		copy(c.decShift[:15], c.decShift[1:])
		c.decShift[15] = ct
	}
}

// encrypt applies the CFB-8 encrypt transform byte-by-byte: the shift
// register advances by the ciphertext byte produced.
func (c *CFB8Conn) encrypt(p []byte) {
	var scratch [16]byte
	for i := range p {
		c.block.Encrypt(scratch[:], c.encShift)
		pt := p[i]
		ct := pt ^ scratch[0]
		p[i] = ct
		copy(c.encShift[:15], c.encShift[1:])
		c.encShift[15] = ct
	}
}
