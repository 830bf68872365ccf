package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gagliardetto/solana-go"
	"github.com/publicqi/pda-directory/pkg/registry"
)

// queryIntent classifies a validated request, in priority order: an exact
// lookup when a pda is supplied, a program-scoped list when a program_id is
// supplied, a full list otherwise.
type queryIntent string

const (
	intentExactLookup queryIntent = "exact_lookup"
	intentProgramList queryIntent = "program_list"
	intentFullList    queryIntent = "full_list"
)

// paginationMode is chosen by cursor presence for list intents. Exact
// lookups produce no pagination metadata at all.
type paginationMode string

const (
	modeNone   paginationMode = "none"
	modeKeyset paginationMode = "keyset"
	modeOffset paginationMode = "offset"
)

type queryRequest struct {
	PDA       *solana.PublicKey
	ProgramID *solana.PublicKey
	Cursor    *solana.PublicKey
	Limit     int
	Offset    int
}

func parseQueryRequest(params url.Values, defaultLimit, maxLimit int) (queryRequest, error) {
	var req queryRequest
	var err error

	if req.Limit, err = resolveLimit(params.Get("limit"), defaultLimit, maxLimit); err != nil {
		return queryRequest{}, err
	}
	if req.Offset, err = resolveOffset(params.Get("offset")); err != nil {
		return queryRequest{}, err
	}
	if req.PDA, err = resolveAddressParam("pda", params.Get("pda")); err != nil {
		return queryRequest{}, err
	}
	if req.ProgramID, err = resolveAddressParam("program_id", params.Get("program_id")); err != nil {
		return queryRequest{}, err
	}
	if req.Cursor, err = resolveAddressParam("cursor", params.Get("cursor")); err != nil {
		return queryRequest{}, err
	}

	// Exact lookups return exactly zero or one row.
	if req.PDA != nil {
		req.Limit = 1
		req.Offset = 0
	}
	return req, nil
}

func (req queryRequest) intent() queryIntent {
	switch {
	case req.PDA != nil:
		return intentExactLookup
	case req.ProgramID != nil:
		return intentProgramList
	default:
		return intentFullList
	}
}

func (req queryRequest) mode() paginationMode {
	if req.intent() == intentExactLookup {
		return modeNone
	}
	if req.Cursor != nil {
		return modeKeyset
	}
	return modeOffset
}

type queryResult struct {
	Intent queryIntent
	Mode   paginationMode
	Limit  int
	Offset int
	Rows   []registry.Row

	HasNext    bool
	NextCursor *solana.PublicKey
}

// resolveQuery turns a validated request into a bounded, ordered store scan
// and derives pagination state. List intents over-fetch by one row so that
// next-page existence never costs a second query.
func resolveQuery(ctx context.Context, store registry.Store, req queryRequest) (queryResult, error) {
	result := queryResult{
		Intent: req.intent(),
		Mode:   req.mode(),
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	if result.Intent == intentExactLookup {
		row, found, err := store.GetByPDA(ctx, *req.PDA)
		if err != nil {
			return queryResult{}, fmt.Errorf("exact lookup failed: %w", err)
		}
		if found {
			result.Rows = []registry.Row{row}
		}
		return result, nil
	}

	q := registry.ListQuery{
		ProgramID: req.ProgramID,
		Limit:     req.Limit + 1,
	}
	if result.Mode == modeKeyset {
		q.After = req.Cursor
	} else {
		q.Offset = req.Offset
	}

	rows, err := store.List(ctx, q)
	if err != nil {
		return queryResult{}, fmt.Errorf("list query failed: %w", err)
	}

	result.HasNext = len(rows) > req.Limit
	if result.HasNext {
		rows = rows[:req.Limit]
	}
	result.Rows = rows

	if result.Mode == modeKeyset && result.HasNext && len(rows) > 0 {
		last := rows[len(rows)-1].PDA
		result.NextCursor = &last
	}
	return result, nil
}
