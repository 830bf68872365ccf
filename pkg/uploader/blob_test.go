package uploader

import (
	"crypto/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/publicqi/pda-directory/pkg/seedcodec"
	"github.com/stretchr/testify/require"
)

func randomPK(t *testing.T) solana.PublicKey {
	t.Helper()
	var raw [32]byte
	_, err := rand.Read(raw[:])
	require.NoError(t, err)
	return solana.PublicKeyFromBytes(raw[:])
}

func TestUploader_EncodeSeeds_DecodableByReadPath(t *testing.T) {
	t.Parallel()

	seeds := [][]byte{[]byte("doublezero"), []byte("tenant"), {0xFE}}
	blob := EncodeSeeds(seeds)

	decoded, err := seedcodec.Decode(blob)
	require.NoError(t, err)
	require.Equal(t, seeds, decoded)
}

func TestUploader_EntryBlob_RoundTrip(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{PDA: randomPK(t), ProgramID: randomPK(t), Seeds: [][]byte{[]byte("a"), {0xFF}}},
		{PDA: randomPK(t), ProgramID: randomPK(t), Seeds: [][]byte{}},
		{PDA: randomPK(t), ProgramID: randomPK(t), Seeds: [][]byte{{}, []byte("after empty"), {0x01}}},
	}

	decoded, err := DecodeEntries(EncodeEntries(entries))
	require.NoError(t, err)
	require.Len(t, decoded, len(entries))
	for i := range entries {
		require.Equal(t, entries[i].PDA, decoded[i].PDA)
		require.Equal(t, entries[i].ProgramID, decoded[i].ProgramID)
		require.Equal(t, len(entries[i].Seeds), len(decoded[i].Seeds))
		for j := range entries[i].Seeds {
			require.Equal(t, entries[i].Seeds[j], decoded[i].Seeds[j])
		}
	}
}

func TestUploader_DecodeEntries_Malformed(t *testing.T) {
	t.Parallel()

	valid := EncodeEntries([]Entry{{PDA: randomPK(t), ProgramID: randomPK(t), Seeds: [][]byte{{0x01}}}})

	hugeSeedCount := append(append([]byte(nil), valid[:4+64]...), 0xFF, 0xFF, 0xFF, 0xFF)

	cases := map[string][]byte{
		"empty":            {},
		"truncated count":  {0x01, 0x00},
		"truncated pda":    valid[:20],
		"truncated seeds":  valid[:len(valid)-2],
		"trailing garbage": append(append([]byte(nil), valid...), 0xAA),
		// Declared counts vastly beyond the blob must fail without
		// allocating for them.
		"huge entry count": {0xFF, 0xFF, 0xFF, 0xFF},
		"huge seed count":  hugeSeedCount,
	}

	for name, blob := range cases {
		_, err := DecodeEntries(blob)
		require.Error(t, err, "case %q", name)
	}
}

func TestUploader_Entry_Row(t *testing.T) {
	t.Parallel()

	e := Entry{PDA: randomPK(t), ProgramID: randomPK(t), Seeds: [][]byte{[]byte("s"), {0xFE}}}
	row := e.Row()
	require.Equal(t, e.PDA, row.PDA)
	require.Equal(t, e.ProgramID, row.ProgramID)

	decoded, err := seedcodec.Decode(row.SeedBytes)
	require.NoError(t, err)
	require.Equal(t, e.Seeds, decoded)
}

func TestUploader_VerifyDerivation(t *testing.T) {
	t.Parallel()

	program := randomPK(t)
	seeds := [][]byte{[]byte("doublezero"), []byte("tenant"), []byte("alpha")}

	pda, bump, err := solana.FindProgramAddress(seeds, program)
	require.NoError(t, err)

	e := Entry{
		PDA:       pda,
		ProgramID: program,
		Seeds:     append(append([][]byte{}, seeds...), []byte{bump}),
	}
	require.True(t, e.VerifyDerivation())

	// Wrong PDA fails the check.
	e.PDA = randomPK(t)
	require.False(t, e.VerifyDerivation())
}
