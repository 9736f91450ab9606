package mmrengine

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashFunc is the 256-bit hash family the engine is parameterised over. The
// guest and host MUST use the same implementation for a root to agree;
// production wiring uses Keccak256 for Ethereum-header compatibility.
type HashFunc func(data ...[]byte) []byte

// Keccak256 is the default HashFunc, matching the guest's hashing of
// Ethereum-style block hashes.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// encodeHash renders a 32-byte node hash as the canonical lowercase
// 0x-prefixed hex string required by spec §3.
func encodeHash(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// decodeHash parses a canonical node hash string back to raw bytes.
func decodeHash(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrInvalidProof)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return b, nil
}

// ValidateU256Hex checks that s is a valid on-chain root: 0x-prefixed,
// at most 64 hex digits, all hex. Satisfies spec §3's root invariant and
// §7's InvalidU256Hex error kind.
func ValidateU256Hex(s string) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("%w: %q missing 0x prefix", ErrInvalidU256Hex, s)
	}
	digits := s[2:]
	if len(digits) == 0 || len(digits) > 64 {
		return fmt.Errorf("%w: %q has %d hex digits, want 1-64", ErrInvalidU256Hex, s, len(digits))
	}
	if _, err := hex.DecodeString(padEven(digits)); err != nil {
		return fmt.Errorf("%w: %q is not valid hex", ErrInvalidU256Hex, s)
	}
	return nil
}

func padEven(digits string) string {
	if len(digits)%2 == 1 {
		return "0" + digits
	}
	return digits
}
