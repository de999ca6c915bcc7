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

// Package index holds binning-index primitives (the hierarchical
// "bin / linear index" scheme from spec §3 GLOSSARY) shared by the
// BAI, CSI and tabix parsers: the bin containing a given interval, and
// the set of bins that can possibly overlap it.
package index

// Chunk is a pair of virtual file offsets delimiting records that may
// overlap a query interval, per spec §3.
type Chunk struct {
	Begin uint64
	End   uint64
}

// Reg2Bins returns the set of bin IDs whose R-tree-like interval could
// overlap [beg, end) under a generalized hierarchical binning scheme
// with the given minShift (size, in bits, of the smallest bin) and
// depth (number of levels above the smallest). BAI and tabix use the
// fixed scheme minShift=14, depth=5; CSI carries its own minShift and
// depth in the index header.
//
// This is the standard htslib hts_reg2bins algorithm.
func Reg2Bins(beg, end int64, minShift, depth int) []uint32 {
	if end <= beg {
		end = beg + 1
	}
	end--

	var bins []uint32
	s := minShift + depth*3
	t := 0
	for l := 0; l <= depth; l++ {
		b := t + int(beg>>uint(s))
		e := t + int(end>>uint(s))
		for ; b <= e; b++ {
			bins = append(bins, uint32(b))
		}
		s -= 3
		t += 1 << uint((l<<1)+l)
	}
	return bins
}

// BAIMinShift and BAIDepth are the fixed binning parameters used by
// the classic BAM (.bai) and tabix (.tbi) index formats.
const (
	BAIMinShift = 14
	BAIDepth    = 5
)

// MergeChunks sorts chunks by start offset and merges any that are
// adjacent or overlapping, implementing spec §4.3.5's merge rule with
// zero-byte tolerance (merge only true adjacency/overlap, never widen
// for fewer URLs).
func MergeChunks(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	insertionSortChunks(sorted)

	merged := []Chunk{sorted[0]}
	for _, c := range sorted[1:] {
		last := &merged[len(merged)-1]
		if c.Begin <= last.End {
			if c.End > last.End {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// insertionSortChunks sorts by Begin; chunk counts per query are small
// (tens, not thousands), so an allocation-free insertion sort beats
// pulling in sort.Slice's reflection overhead for this hot path.
func insertionSortChunks(c []Chunk) {
	for i := 1; i < len(c); i++ {
		v := c[i]
		j := i - 1
		for j >= 0 && c[j].Begin > v.Begin {
			c[j+1] = c[j]
			j--
		}
		c[j+1] = v
	}
}
