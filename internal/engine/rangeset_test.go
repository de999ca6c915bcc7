package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/index"
)

func TestChunkByteRangeZeroUncompressedExcludesLastBlock(t *testing.T) {
	begin := bgzf.NewVirtualOffset(0x2A00, 0x0010)
	end := bgzf.NewVirtualOffset(0x2B00, 0)

	c := index.Chunk{Begin: uint64(begin), End: uint64(end)}
	r := ChunkByteRange(c, htsget.PurposeBody, 1<<30)

	require.EqualValues(t, 0x2A00, r.First)
	require.EqualValues(t, 0x2B00-1, r.Last)
	require.Equal(t, htsget.PurposeBody, r.Purpose)
}

func TestChunkByteRangePadsPartialLastBlock(t *testing.T) {
	begin := bgzf.NewVirtualOffset(0x2A00, 0x0010)
	end := bgzf.NewVirtualOffset(0x2B00, 0x0005)

	c := index.Chunk{Begin: uint64(begin), End: uint64(end)}
	r := ChunkByteRange(c, htsget.PurposeBody, 1<<30)

	require.EqualValues(t, 0x2A00, r.First)
	require.EqualValues(t, 0x2B00+maxBGZFBlockSize-1, r.Last)
}

func TestChunkByteRangeCapsAtMaxLast(t *testing.T) {
	begin := bgzf.NewVirtualOffset(0x2A00, 0x0010)
	end := bgzf.NewVirtualOffset(0x2B00, 0x0005)

	c := index.Chunk{Begin: uint64(begin), End: uint64(end)}
	const maxLast = 0x2B00 + 100
	r := ChunkByteRange(c, htsget.PurposeBody, maxLast)

	require.EqualValues(t, 0x2A00, r.First)
	require.EqualValues(t, maxLast, r.Last)
}

func TestMergeByteRangesCombinesAdjacentSamePurpose(t *testing.T) {
	ranges := []htsget.ByteRange{
		{First: 100, Last: 199, Purpose: htsget.PurposeBody},
		{First: 200, Last: 299, Purpose: htsget.PurposeBody},
		{First: 0, Last: 49, Purpose: htsget.PurposeHeader},
	}
	merged := MergeByteRanges(ranges)

	require.Equal(t, []htsget.ByteRange{
		{First: 0, Last: 49, Purpose: htsget.PurposeHeader},
		{First: 100, Last: 299, Purpose: htsget.PurposeBody},
	}, merged)
}

func TestMergeByteRangesKeepsDistinctPurposesSeparate(t *testing.T) {
	ranges := []htsget.ByteRange{
		{First: 0, Last: 9, Purpose: htsget.PurposeHeader},
		{First: 10, Last: 19, Purpose: htsget.PurposeBody},
	}
	merged := MergeByteRanges(ranges)
	require.Len(t, merged, 2)
}

func TestChunksToByteRangesPreservesOrder(t *testing.T) {
	c1 := index.Chunk{Begin: uint64(bgzf.NewVirtualOffset(100, 0)), End: uint64(bgzf.NewVirtualOffset(200, 0))}
	c2 := index.Chunk{Begin: uint64(bgzf.NewVirtualOffset(300, 0)), End: uint64(bgzf.NewVirtualOffset(400, 0))}

	ranges := ChunksToByteRanges([]index.Chunk{c1, c2}, htsget.PurposeBody, 1<<30)
	require.Len(t, ranges, 2)
	require.EqualValues(t, 100, ranges[0].First)
	require.EqualValues(t, 300, ranges[1].First)
}
