package server

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/publicqi/pda-directory/pkg/address"
)

// resolveLimit parses the client-supplied limit. Absent falls back to def;
// values above max are clamped, not rejected.
func resolveLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationErrorf("limit must be an integer, got %q", raw)
	}
	if limit < 1 {
		return 0, validationErrorf("limit must be positive, got %d", limit)
	}
	return min(limit, max), nil
}

// resolveOffset parses the client-supplied offset. Absent means 0.
func resolveOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationErrorf("offset must be an integer, got %q", raw)
	}
	if offset < 0 {
		return 0, validationErrorf("offset must be non-negative, got %d", offset)
	}
	return offset, nil
}

// resolveAddressParam decodes an address-shaped parameter. Absent means nil;
// a decode failure is client input error, never a 500.
func resolveAddressParam(name, raw string) (*solana.PublicKey, error) {
	if raw == "" {
		return nil, nil
	}
	pk, err := address.Decode(raw)
	if err != nil {
		return nil, validationErrorf("invalid %s: %v", name, err)
	}
	return &pk, nil
}
