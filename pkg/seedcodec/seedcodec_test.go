package seedcodec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBlob(seeds ...[]byte) []byte {
	blob := binary.LittleEndian.AppendUint32(nil, uint32(len(seeds)))
	for _, seed := range seeds {
		blob = binary.LittleEndian.AppendUint32(blob, uint32(len(seed)))
		blob = append(blob, seed...)
	}
	return blob
}

func TestSeedCodec_Decode_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := [][][]byte{
		{},
		{{0x2A}},
		{[]byte("doublezero"), []byte("tenant"), {0xFF}},
		{{}, []byte("empty seed above")},
	}

	for _, seeds := range cases {
		decoded, err := Decode(buildBlob(seeds...))
		require.NoError(t, err)
		require.Len(t, decoded, len(seeds))
		for i, seed := range seeds {
			require.Equal(t, []byte(seed), decoded[i])
		}
	}
}

func TestSeedCodec_Decode_KnownBlob(t *testing.T) {
	t.Parallel()

	// Two seeds: [0x2A] and [0x05]; the second is the bump by convention.
	blob := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x2A,
		0x01, 0x00, 0x00, 0x00, 0x05,
	}

	seeds, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x2A}, {0x05}}, seeds)
}

func TestSeedCodec_Decode_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty blob":                  {},
		"short count prefix":          {0x01, 0x00, 0x00},
		"missing length prefix":       {0x01, 0x00, 0x00, 0x00},
		"truncated length prefix":     {0x01, 0x00, 0x00, 0x00, 0x05, 0x00},
		"payload past end":            {0x01, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0xAA},
		"length claims more than all": buildBlobWithLength(1, 1<<20, []byte{0x01}),
		"trailing byte":               append(buildBlob([]byte{0x2A}), 0x00),
		"second seed missing":         {0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x2A},
		// Count prefix claims ~4 billion seeds with no data behind it; must
		// fail cleanly without allocating for the declared count.
		"huge count, empty body": {0xFF, 0xFF, 0xFF, 0xFF},
		"huge count, short body": {0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00, 0x2A},
	}

	for name, blob := range cases {
		_, err := Decode(blob)
		require.ErrorIs(t, err, ErrMalformedBlob, "case %q", name)
	}
}

func buildBlobWithLength(count, length uint32, payload []byte) []byte {
	blob := binary.LittleEndian.AppendUint32(nil, count)
	blob = binary.LittleEndian.AppendUint32(blob, length)
	return append(blob, payload...)
}

func TestSeedCodec_Decode_ReturnsViewsIntoBlob(t *testing.T) {
	t.Parallel()

	blob := buildBlob([]byte{0x01, 0x02}, []byte{0x03})
	seeds, err := Decode(blob)
	require.NoError(t, err)

	// Seeds alias the original blob rather than copies.
	blob[8] = 0x7F
	require.Equal(t, byte(0x7F), seeds[0][0])
}

func TestSeedCodec_Reader_Bounds(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	require.Equal(t, 0, r.Offset())

	v, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x04030201), v)
	require.Equal(t, 4, r.Offset())
	require.Equal(t, 1, r.Remaining())

	// Failed reads do not advance the offset.
	_, err = r.ReadU32()
	require.ErrorIs(t, err, ErrMalformedBlob)
	require.Equal(t, 4, r.Offset())

	b, err := r.ReadBytes(1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x05}, b)
	require.Equal(t, 5, r.Offset())
	require.Equal(t, 0, r.Remaining())

	_, err = r.ReadBytes(1)
	require.ErrorIs(t, err, ErrMalformedBlob)
}
