package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReg2BinsAlwaysIncludesBinZero(t *testing.T) {
	bins := Reg2Bins(10000, 20000, BAIMinShift, BAIDepth)
	require.Contains(t, bins, uint32(0))
}

func TestReg2BinsSingleBasePair(t *testing.T) {
	a := Reg2Bins(100, 101, BAIMinShift, BAIDepth)
	b := Reg2Bins(100, 101, BAIMinShift, BAIDepth)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)
}

func TestMergeChunksAdjacentAndOverlapping(t *testing.T) {
	chunks := []Chunk{
		{Begin: 100, End: 200},
		{Begin: 200, End: 300}, // adjacent, merges
		{Begin: 500, End: 600},
		{Begin: 550, End: 650}, // overlapping, merges
	}
	merged := MergeChunks(chunks)
	require.Equal(t, []Chunk{
		{Begin: 100, End: 300},
		{Begin: 500, End: 650},
	}, merged)
}

func TestMergeChunksEmpty(t *testing.T) {
	require.Nil(t, MergeChunks(nil))
}
