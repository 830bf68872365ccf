package server

import (
	"fmt"

	"github.com/publicqi/pda-directory/pkg/address"
	"github.com/publicqi/pda-directory/pkg/registry"
	"github.com/publicqi/pda-directory/pkg/seedcodec"
)

type SeedJSON struct {
	Index  int    `json:"index"`
	RawHex string `json:"raw_hex"`
	Length int    `json:"length"`
	IsBump bool   `json:"is_bump"`
}

type ResultJSON struct {
	PDA       string     `json:"pda"`
	ProgramID string     `json:"program_id"`
	SeedCount int        `json:"seed_count"`
	Seeds     []SeedJSON `json:"seeds"`
}

type ListResponse struct {
	Limit          int          `json:"limit"`
	Offset         *int         `json:"offset,omitempty"`
	Count          int          `json:"count"`
	Results        []ResultJSON `json:"results"`
	HasNext        bool         `json:"has_next"`
	HasPrevious    bool         `json:"has_previous"`
	NextOffset     *int         `json:"next_offset,omitempty"`
	PreviousOffset *int         `json:"previous_offset,omitempty"`
	NextCursor     *string      `json:"next_cursor,omitempty"`
}

type LookupResponse struct {
	Query   map[string]string `json:"query"`
	Count   int               `json:"count"`
	Results []ResultJSON      `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// buildResults decodes every row's seed blob and renders display forms. A
// malformed blob fails the whole request: corruption in storage is a
// server-side defect, not something the client can page past.
func buildResults(rows []registry.Row) ([]ResultJSON, error) {
	results := make([]ResultJSON, 0, len(rows))
	for _, row := range rows {
		seeds, err := seedcodec.Decode(row.SeedBytes)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", address.Encode(row.PDA), err)
		}

		seedJSON := make([]SeedJSON, len(seeds))
		for i, seed := range seeds {
			seedJSON[i] = SeedJSON{
				Index:  i,
				RawHex: address.ToHex(seed),
				Length: len(seed),
				// Canonical derivation appends the 1-byte bump last; the
				// ingest pipeline guarantees that ordering.
				IsBump: i == len(seeds)-1,
			}
		}

		results = append(results, ResultJSON{
			PDA:       address.Encode(row.PDA),
			ProgramID: address.Encode(row.ProgramID),
			SeedCount: len(seeds),
			Seeds:     seedJSON,
		})
	}
	return results, nil
}

func buildListResponse(result queryResult, results []ResultJSON) ListResponse {
	resp := ListResponse{
		Limit:       result.Limit,
		Count:       len(results),
		Results:     results,
		HasNext:     result.HasNext,
		HasPrevious: result.Offset > 0,
	}

	switch result.Mode {
	case modeKeyset:
		if result.NextCursor != nil {
			cursor := address.Encode(*result.NextCursor)
			resp.NextCursor = &cursor
		}
		// Backward navigation in keyset mode is unsupported; clients fall
		// back to offset mode.
	case modeOffset:
		offset := result.Offset
		resp.Offset = &offset
		if result.HasNext {
			next := result.Offset + result.Limit
			resp.NextOffset = &next
		}
		previous := max(0, result.Offset-result.Limit)
		resp.PreviousOffset = &previous
	}
	return resp
}

func buildLookupResponse(req queryRequest, results []ResultJSON) LookupResponse {
	query := make(map[string]string, 1)
	if req.PDA != nil {
		query["pda"] = address.Encode(*req.PDA)
	} else if req.ProgramID != nil {
		query["program_id"] = address.Encode(*req.ProgramID)
	}
	return LookupResponse{
		Query:   query,
		Count:   len(results),
		Results: results,
	}
}
