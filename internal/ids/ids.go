// Package ids centralizes identifier generation: session ids and
// fallback offline-mode player uuids, both backed by
// github.com/google/uuid.
package ids

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh unique session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// OfflinePlayerUUID derives the deterministic "offline-mode" uuid
// Minecraft uses when a server is not authenticating players online:
// version-3 (name-based, MD5) UUID over "OfflinePlayer:<username>".
func OfflinePlayerUUID(username string) [16]byte {
	id := md5.Sum([]byte("OfflinePlayer:" + username))
	id[6] = (id[6] & 0x0f) | 0x30 // version 3
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// ParseUUID parses a hyphenated or bare-hex uuid string.
func ParseUUID(s string) ([16]byte, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, err
	}
	return [16]byte(id), nil
}

// FormatUUID renders a raw uuid as the hyphenated canonical string.
func FormatUUID(b [16]byte) string {
	return uuid.UUID(b).String()
}

