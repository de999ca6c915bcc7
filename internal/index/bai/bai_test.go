package bai

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBAI constructs a minimal one-reference BAI index with a single
// bin covering a single chunk, and a 1-entry linear index.
func buildBAI(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("BAI\x01")
	writeI32(buf, 1) // n_ref

	writeI32(buf, 1)    // n_bin
	writeU32(buf, 4681) // bin 4681 covers [0, 16384) at depth 5 (leaf level)
	writeI32(buf, 1)    // n_chunk
	writeU64(buf, 0x2A0000000010)
	writeU64(buf, 0x2B0000000000)

	writeI32(buf, 1) // n_intv
	writeU64(buf, 0x2A0000000010)

	return buf.Bytes()
}

func writeI32(buf *bytes.Buffer, v int32)  { binary.Write(buf, binary.LittleEndian, v) }
func writeU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }

func TestParseBAI(t *testing.T) {
	idx, err := Parse(buildBAI(t))
	require.NoError(t, err)
	require.Len(t, idx.References, 1)
	require.Len(t, idx.References[0].Linear, 1)
}

func TestParseBAIBadMagic(t *testing.T) {
	_, err := Parse([]byte("NOPE"))
	require.Error(t, err)
}

func TestChunksFiltersByLinearIndex(t *testing.T) {
	idx, err := Parse(buildBAI(t))
	require.NoError(t, err)

	chunks, err := idx.Chunks(0, 10000, 20000)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.EqualValues(t, 0x2A0000000010, chunks[0].Begin)
}

func TestChunksOutOfRangeReference(t *testing.T) {
	idx, err := Parse(buildBAI(t))
	require.NoError(t, err)
	_, err = idx.Chunks(5, 0, 100)
	require.Error(t, err)
}
