// Package uploader is the ingest side of the directory: it merges collector
// blob files into deduplicated batches and bulk-loads them into the registry
// replicas. The read core never writes; everything here runs out of band.
package uploader

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/publicqi/pda-directory/pkg/registry"
	"github.com/publicqi/pda-directory/pkg/seedcodec"
)

// Entry is one collected PDA derivation before storage encoding.
type Entry struct {
	PDA       solana.PublicKey
	ProgramID solana.PublicKey
	Seeds     [][]byte
}

// Row renders the entry in storage form.
func (e Entry) Row() registry.Row {
	return registry.Row{
		PDA:       e.PDA,
		ProgramID: e.ProgramID,
		SeedBytes: EncodeSeeds(e.Seeds),
	}
}

// VerifyDerivation recomputes the PDA from the program id and the full seed
// list (bump included as the final seed) and compares it to the collected
// address.
func (e Entry) VerifyDerivation() bool {
	derived, err := solana.CreateProgramAddress(e.Seeds, e.ProgramID)
	if err != nil {
		return false
	}
	return derived.Equals(e.PDA)
}

// EncodeSeeds packs an ordered seed list into the storage blob consumed by
// the read path's seed codec: u32 count, then u32 length + payload per seed,
// little-endian throughout.
func EncodeSeeds(seeds [][]byte) []byte {
	size := 4
	for _, seed := range seeds {
		size += 4 + len(seed)
	}
	blob := make([]byte, 0, size)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(seeds)))
	for _, seed := range seeds {
		blob = binary.LittleEndian.AppendUint32(blob, uint32(len(seed)))
		blob = append(blob, seed...)
	}
	return blob
}

// EncodeEntries serializes a batch of entries as a collector blob:
// u32 entryCount, then per entry pda[32], program_id[32], seed list in the
// storage encoding.
func EncodeEntries(entries []Entry) []byte {
	blob := binary.LittleEndian.AppendUint32(nil, uint32(len(entries)))
	for _, e := range entries {
		blob = append(blob, e.PDA[:]...)
		blob = append(blob, e.ProgramID[:]...)
		blob = append(blob, EncodeSeeds(e.Seeds)...)
	}
	return blob
}

// DecodeEntries parses a collector blob. Unlike the read path's seed codec
// the seeds here are copied out of the blob, since entries outlive the file
// buffer they were read from.
func DecodeEntries(blob []byte) ([]Entry, error) {
	r := seedcodec.NewReader(blob)

	count, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}

	// Each entry occupies at least two addresses plus a seed count; cap the
	// allocation by that floor rather than trusting the declared count.
	const minEntrySize = 32 + 32 + 4
	entries := make([]Entry, 0, min(int(count), r.Remaining()/minEntrySize))
	for i := uint32(0); i < count; i++ {
		var e Entry

		pda, err := r.ReadAddress()
		if err != nil {
			return nil, fmt.Errorf("entry %d pda: %w", i, err)
		}
		program, err := r.ReadAddress()
		if err != nil {
			return nil, fmt.Errorf("entry %d program id: %w", i, err)
		}
		e.PDA = solana.PublicKeyFromBytes(pda[:])
		e.ProgramID = solana.PublicKeyFromBytes(program[:])

		seedCount, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("entry %d seed count: %w", i, err)
		}
		e.Seeds = make([][]byte, 0, min(int(seedCount), r.Remaining()/4))
		for j := uint32(0); j < seedCount; j++ {
			length, err := r.ReadU32()
			if err != nil {
				return nil, fmt.Errorf("entry %d seed %d length: %w", i, j, err)
			}
			payload, err := r.ReadBytes(int(length))
			if err != nil {
				return nil, fmt.Errorf("entry %d seed %d payload: %w", i, j, err)
			}
			e.Seeds = append(e.Seeds, bytes.Clone(payload))
		}

		entries = append(entries, e)
	}

	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries", seedcodec.ErrMalformedBlob, r.Remaining(), count)
	}
	return entries, nil
}
