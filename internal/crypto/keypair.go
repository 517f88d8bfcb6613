// Package crypto implements the Minecraft login-phase cryptography: the
// process-wide RSA key pair used for ClientOnly/ServerOnly encryption
// requests, and the signed server-id digest used to authenticate against
// the external session service.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// KeyPair is the RSA-1024 key pair generated once at startup and reused
// across all ClientOnly/ServerOnly authentications in this process.
type KeyPair struct {
	Private *rsa.PrivateKey
	// PublicDER is the ASN.1 DER encoding of the public key, cached so it
	// does not need to be re-marshaled on every EncryptionRequest.
	PublicDER []byte
}

// GenerateKeyPair creates a fresh RSA-1024 key pair, per the protocol's
// EncryptionRequest requirements.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate rsa key: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal public key: %w", err)
	}
	return &KeyPair{Private: priv, PublicDER: der}, nil
}

// Decrypt decrypts data (e.g. the encrypted shared secret or verify
// token from an EncryptionResponse) with PKCS#1 v1.5 padding, as the
// Minecraft protocol requires.
func (k *KeyPair) Decrypt(data []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, k.Private, data)
}

// Encrypt encrypts data for the given peer public key (used by ServerOnly
// mode, where the proxy plays the client role against the backend).
func Encrypt(pub *rsa.PublicKey, data []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, pub, data)
}

// RandomVerifyToken returns a fresh 4-byte verify token, per the
// EncryptionRequest contract.
func RandomVerifyToken() ([]byte, error) {
	token := make([]byte, 4)
	if _, err := rand.Read(token); err != nil {
		return nil, err
	}
	return token, nil
}

// RandomSharedSecret returns a fresh 16-byte shared secret, used by
// ServerOnly mode where the proxy itself initiates encryption toward a
// backend.
func RandomSharedSecret() ([]byte, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// ParsePublicDER parses an ASN.1 DER-encoded RSA public key, as received
// in a backend's EncryptionRequest when this proxy plays the client role
// (ServerOnly mode).
func ParsePublicDER(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: public key is not rsa")
	}
	return rsaPub, nil
}
