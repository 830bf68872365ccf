// Package seedcodec decodes the packed binary blob stored per registry row
// into the ordered list of seeds that derived the PDA.
//
// The wire format is little-endian with no alignment padding:
//
//	u32 seedCount
//	repeat seedCount times:
//	  u32 length
//	  byte[length] payload
//
// Blobs are produced exclusively by the ingest pipeline; there is no encode
// operation on the read path.
package seedcodec

import (
	"errors"
	"fmt"
)

// ErrMalformedBlob is wrapped by every decode failure. A malformed blob in
// storage is a server-side data defect, not a client error.
var ErrMalformedBlob = errors.New("malformed seed blob")

// Decode parses blob into its ordered seeds. The returned slices alias the
// input; callers must not mutate them and must not retain them past the
// lifetime of the blob.
func Decode(blob []byte) ([][]byte, error) {
	r := NewReader(blob)

	count, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("seed count: %w", err)
	}

	// Cap the allocation by what the blob can actually hold: every seed
	// carries at least its 4-byte length prefix. The count itself is
	// untrusted input.
	seeds := make([][]byte, 0, min(int(count), r.Remaining()/4))
	for i := uint32(0); i < count; i++ {
		length, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("seed %d length: %w", i, err)
		}
		payload, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("seed %d payload: %w", i, err)
		}
		seeds = append(seeds, payload)
	}

	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d seeds", ErrMalformedBlob, r.Remaining(), count)
	}

	// Unreachable while the loop above is bounded by count, but kept as a
	// guard in case future encodings decouple the loop from the declared
	// count.
	if uint32(len(seeds)) != count {
		return nil, fmt.Errorf("%w: decoded %d seeds, declared %d", ErrMalformedBlob, len(seeds), count)
	}

	return seeds, nil
}
