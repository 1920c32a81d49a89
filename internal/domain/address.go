package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// pubkeyLen is the byte length of a Solana public key.
const pubkeyLen = 32

// IsMintAddress reports whether id decodes to a 32-byte Solana address.
// Placeholder ids such as "vibe-001" are not addresses.
func IsMintAddress(id string) bool {
	if id == "" {
		return false
	}
	decoded, err := base58.Decode(id)
	if err != nil {
		return false
	}
	return len(decoded) == pubkeyLen
}

// ValidateWalletAddress checks that addr is a base58 ed25519 public key on the curve.
// Program derived addresses are off-curve and cannot sign, so they are rejected.
func ValidateWalletAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("wallet address is required")
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode wallet address: %w", err)
	}
	if len(decoded) != pubkeyLen {
		return fmt.Errorf("wallet address must be %d bytes, got %d", pubkeyLen, len(decoded))
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return fmt.Errorf("wallet address is not on the ed25519 curve")
	}
	return nil
}
