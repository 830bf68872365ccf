// Package registry models the PDA registry: one immutable row per derived
// address, keyed by the 32-byte PDA and ordered bytewise over that key.
package registry

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Row is a single registry entry. Rows are written only by the ingest
// pipeline; the read path never mutates them.
type Row struct {
	PDA       solana.PublicKey
	ProgramID solana.PublicKey
	SeedBytes []byte
}

// ListQuery describes a bounded, ordered scan over the registry. Results are
// always ordered by PDA ascending.
type ListQuery struct {
	// ProgramID filters rows to a single owning program when set.
	ProgramID *solana.PublicKey

	// After is the exclusive keyset lower bound (pda > After). When set,
	// Offset is ignored by the store.
	After *solana.PublicKey

	Limit  int
	Offset int
}

// Store is the read surface over a registry replica.
type Store interface {
	// GetByPDA fetches a single row by primary key. The second return is
	// false when no row matches; that is not an error.
	GetByPDA(ctx context.Context, pda solana.PublicKey) (Row, bool, error)

	// List executes a bounded scan ordered by PDA ascending.
	List(ctx context.Context, q ListQuery) ([]Row, error)
}
