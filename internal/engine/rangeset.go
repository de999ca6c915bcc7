/*
Copyright 2025 The htsgetd Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package engine

import (
	"sort"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/index"
)

// maxBGZFBlockSize is the largest a BGZF member can be: BSIZE is a
// 16-bit field holding (block size - 1).
const maxBGZFBlockSize = 1 << 16

// ChunkByteRange converts an index Chunk's pair of BGZF virtual
// offsets into the inclusive compressed-file byte range a client must
// fetch to read every record the chunk covers. maxLast caps the
// result, since this chunk's body range must never reach into (or
// past) the trailing EOF marker.
//
// When the chunk's end virtual offset has a zero uncompressed
// component, the final block it points into holds none of the
// records of interest and is excluded. Otherwise the end falls partway
// through a block whose on-disk length this layer doesn't know without
// a second index lookup, so the range is padded by one maximal block;
// the BGZF EOF/record-boundary handling downstream tolerates the
// resulting trailing bytes, up to the cap.
func ChunkByteRange(c index.Chunk, purpose htsget.Purpose, maxLast int64) htsget.ByteRange {
	begin := bgzf.VirtualOffset(c.Begin)
	end := bgzf.VirtualOffset(c.End)

	first := begin.Compressed()
	last := end.Compressed()
	if end.Uncompressed() == 0 {
		last--
	} else {
		last += maxBGZFBlockSize - 1
	}
	if last < first {
		last = first
	}
	if last > maxLast {
		last = maxLast
	}
	return htsget.ByteRange{First: first, Last: last, Purpose: purpose}
}

// ChunksToByteRanges maps a list of index chunks to byte ranges
// tagged with purpose, in the chunks' original order, each capped at
// maxLast (the last legal body byte, i.e. one less than where the
// trailing EOF/footer range begins).
func ChunksToByteRanges(chunks []index.Chunk, purpose htsget.Purpose, maxLast int64) []htsget.ByteRange {
	out := make([]htsget.ByteRange, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkByteRange(c, purpose, maxLast)
	}
	return out
}

// MergeByteRanges sorts ranges by their first byte and merges any that
// overlap or are directly adjacent and share a Purpose, implementing
// the ticket-minimization rule of spec §4.3.5: never emit two URLs
// where one would do.
func MergeByteRanges(ranges []htsget.ByteRange) []htsget.ByteRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]htsget.ByteRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].First != sorted[j].First {
			return sorted[i].First < sorted[j].First
		}
		return sorted[i].Last < sorted[j].Last
	})

	merged := []htsget.ByteRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Purpose == last.Purpose && r.First <= last.Last+1 {
			if r.Last > last.Last {
				last.Last = r.Last
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
