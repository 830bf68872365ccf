package registry

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func pk(b byte) *solana.PublicKey {
	var raw [32]byte
	raw[0] = b
	p := solana.PublicKeyFromBytes(raw[:])
	return &p
}

func TestRegistry_BuildListQuery_FullList(t *testing.T) {
	t.Parallel()

	sql, args := buildListQuery(ListQuery{Limit: 26})
	require.Equal(t, "SELECT pda, program_id, seed_bytes FROM pda_registry ORDER BY pda ASC LIMIT $1", sql)
	require.Equal(t, []any{26}, args)
}

func TestRegistry_BuildListQuery_OffsetMode(t *testing.T) {
	t.Parallel()

	sql, args := buildListQuery(ListQuery{Limit: 26, Offset: 50})
	require.Equal(t, "SELECT pda, program_id, seed_bytes FROM pda_registry ORDER BY pda ASC LIMIT $1 OFFSET $2", sql)
	require.Equal(t, []any{26, 50}, args)
}

func TestRegistry_BuildListQuery_ProgramFilter(t *testing.T) {
	t.Parallel()

	program := pk(0xAA)
	sql, args := buildListQuery(ListQuery{ProgramID: program, Limit: 11})
	require.Equal(t, "SELECT pda, program_id, seed_bytes FROM pda_registry WHERE program_id = $1 ORDER BY pda ASC LIMIT $2", sql)
	require.Equal(t, []any{(*program)[:], 11}, args)
}

func TestRegistry_BuildListQuery_KeysetIgnoresOffset(t *testing.T) {
	t.Parallel()

	program := pk(0xAA)
	after := pk(0x10)
	sql, args := buildListQuery(ListQuery{ProgramID: program, After: after, Limit: 11, Offset: 99})
	require.Equal(t, "SELECT pda, program_id, seed_bytes FROM pda_registry WHERE program_id = $1 AND pda > $2 ORDER BY pda ASC LIMIT $3", sql)
	require.Equal(t, []any{(*program)[:], (*after)[:], 11}, args)
}

func TestRegistry_DeclaredSeedCount(t *testing.T) {
	t.Parallel()

	blob := binary.LittleEndian.AppendUint32(nil, 3)
	n, err := declaredSeedCount(blob)
	require.NoError(t, err)
	require.Equal(t, int32(3), n)

	_, err = declaredSeedCount([]byte{0x01, 0x02})
	require.Error(t, err)
}
