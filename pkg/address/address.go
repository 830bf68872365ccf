// Package address converts between the human-facing base58 form of a Solana
// address and its canonical 32-byte value, and renders raw bytes as hex for
// display.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is wrapped by every decode failure: not valid base58, or
// not exactly 32 bytes once decoded.
var ErrInvalidAddress = errors.New("invalid address")

// Decode parses a base58 string into a 32-byte public key.
func Decode(s string) (solana.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: decoded to %d bytes, expected %d", ErrInvalidAddress, len(raw), solana.PublicKeyLength)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// Encode renders a public key as base58.
func Encode(pk solana.PublicKey) string {
	return base58.Encode(pk[:])
}

// ToHex renders raw bytes as "0x"-prefixed lowercase hex. Used for seed
// payloads, which may be any length; addresses stay base58.
func ToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
