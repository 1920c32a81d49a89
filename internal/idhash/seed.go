package idhash

import (
	"crypto/sha256"
	"encoding/binary"
)

// Seed derives a stable 64-bit seed from a key.
// Used to generate reproducible synthetic data for a token.
func Seed(key string) uint64 {
	hash := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(hash[:8])
}
