package crypto

import (
	"crypto/sha1" //nolint:gosec // mandated by the Minecraft protocol, not used for security here
	"math/big"
)

// ServerIDHash computes the Minecraft "server-id hash": SHA-1 over
// serverID || sharedSecret || publicKeyDER, rendered as the signed
// two's-complement hex string the session service expects (most SHA-1
// libraries render unsigned hex; Minecraft's hasJoined/joinServer
// endpoints require the signed rendering).
func ServerIDHash(serverID string, sharedSecret, publicKeyDER []byte) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	sum := h.Sum(nil)
	return signedHex(sum)
}

// signedHex renders a SHA-1 digest as Minecraft's signed two's-complement
// hex string: interpret the 20-byte digest as a big-endian two's
// complement integer, render in hex with no leading zeros, and prefix a
// '-' if negative.
func signedHex(digest []byte) string {
	n := new(big.Int).SetBytes(digest)

	// If the high bit of the first byte is set, the value is negative in
	// two's complement; negate by computing 2^160 - n.
	if len(digest) > 0 && digest[0]&0x80 != 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), uint(len(digest)*8))
		n.Sub(n, modulus)
	}

	if n.Sign() < 0 {
		return "-" + new(big.Int).Neg(n).Text(16)
	}
	return n.Text(16)
}
