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

// Package bai parses the classic BAM index format (.bai), as described
// in the SAM/BAM specification: a magic number, one bin/chunk/linear
// index triple per reference sequence, and an optional trailing
// "no coordinate" read count.
package bai

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-htsget/htsgetd/internal/index"
)

var magic = []byte("BAI\x01")

// pseudoBin is the reserved bin ID samtools uses to stash per-reference
// mapped/unmapped read counts alongside a virtual-offset pair that
// marks where that reference's unmapped records begin.
const pseudoBin = 37450

// Reference holds one reference sequence's bins and linear index.
type Reference struct {
	Bins     map[uint32][]index.Chunk
	Linear   []uint64 // virtual offsets, spaced by index.BAIMinShift
	Unmapped uint64   // virtual offset chunk begin from the pseudo-bin, 0 if absent
}

// Index is a parsed .bai file.
type Index struct {
	References []Reference
	NoCoord    uint64 // count of reads with no coordinate at all, if present
}

// Parse decodes a raw (already gunzipped — .bai is not itself
// compressed) BAI byte stream.
func Parse(data []byte) (*Index, error) {
	r := bytes.NewReader(data)
	var hdr [4]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return nil, fmt.Errorf("reading bai magic: %w", err)
	}
	if !bytes.Equal(hdr[:], magic) {
		return nil, fmt.Errorf("not a bai index: bad magic %x", hdr)
	}

	nRef, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading n_ref: %w", err)
	}

	idx := &Index{References: make([]Reference, nRef)}
	for i := int32(0); i < nRef; i++ {
		ref := Reference{Bins: make(map[uint32][]index.Chunk)}

		nBin, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ref %d: reading n_bin: %w", i, err)
		}
		for b := int32(0); b < nBin; b++ {
			bin, err := readU32(r)
			if err != nil {
				return nil, fmt.Errorf("ref %d bin %d: reading bin id: %w", i, b, err)
			}
			nChunk, err := readI32(r)
			if err != nil {
				return nil, fmt.Errorf("ref %d bin %d: reading n_chunk: %w", i, b, err)
			}
			chunks := make([]index.Chunk, nChunk)
			for c := int32(0); c < nChunk; c++ {
				beg, err := readU64(r)
				if err != nil {
					return nil, fmt.Errorf("ref %d bin %d chunk %d: reading chunk_beg: %w", i, b, c, err)
				}
				end, err := readU64(r)
				if err != nil {
					return nil, fmt.Errorf("ref %d bin %d chunk %d: reading chunk_end: %w", i, b, c, err)
				}
				chunks[c] = index.Chunk{Begin: beg, End: end}
			}
			if bin == pseudoBin {
				// Pseudo-bin layout: two chunks encode (unmapped-begin,
				// mapped-end) followed by n_mapped/n_unmapped counts
				// packed into the 4th uint64 pair; only the first
				// chunk's Begin is meaningful for ticketing.
				if len(chunks) > 0 {
					ref.Unmapped = chunks[0].Begin
				}
				continue
			}
			ref.Bins[bin] = chunks
		}

		nIntv, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ref %d: reading n_intv: %w", i, err)
		}
		ref.Linear = make([]uint64, nIntv)
		for v := int32(0); v < nIntv; v++ {
			off, err := readU64(r)
			if err != nil {
				return nil, fmt.Errorf("ref %d linear %d: reading offset: %w", i, v, err)
			}
			ref.Linear[v] = off
		}

		idx.References[i] = ref
	}

	if noCoord, err := readU64(r); err == nil {
		idx.NoCoord = noCoord
	}

	return idx, nil
}

// Chunks returns the merged, linear-index-filtered chunks covering
// [beg, end) on reference refID, per spec §4.3.1.
func (idx *Index) Chunks(refID int, beg, end int64) ([]index.Chunk, error) {
	if refID < 0 || refID >= len(idx.References) {
		return nil, fmt.Errorf("reference id %d out of range (have %d references)", refID, len(idx.References))
	}
	ref := idx.References[refID]

	minOffset := linearMinOffset(ref.Linear, beg)

	var candidates []index.Chunk
	for _, bin := range index.Reg2Bins(beg, end, index.BAIMinShift, index.BAIDepth) {
		chunks, ok := ref.Bins[bin]
		if !ok {
			continue
		}
		for _, c := range chunks {
			if c.End <= minOffset {
				continue // no records in this chunk can overlap beg..end
			}
			candidates = append(candidates, c)
		}
	}
	return index.MergeChunks(candidates), nil
}

// UnmappedStart returns the virtual offset marking the start of
// unplaced-unmapped reads (the "*" reference name): the largest of
// every reference's pseudo-bin unmapped offset, linear-index offset
// and chunk end.
func (idx *Index) UnmappedStart() uint64 {
	var best uint64
	for _, ref := range idx.References {
		if ref.Unmapped > best {
			best = ref.Unmapped
		}
		for _, off := range ref.Linear {
			if off > best {
				best = off
			}
		}
		for _, chunks := range ref.Bins {
			for _, c := range chunks {
				if c.End > best {
					best = c.End
				}
			}
		}
	}
	return best
}

// linearMinOffset returns the linear-index hint for the bin containing
// beg: the smallest virtual offset at or before any record that could
// start at beg, used to discard bins with no records in range.
func linearMinOffset(linear []uint64, beg int64) uint64 {
	win := beg >> index.BAIMinShift
	if win < 0 {
		win = 0
	}
	if int(win) >= len(linear) {
		if len(linear) == 0 {
			return 0
		}
		return linear[len(linear)-1]
	}
	return linear[win]
}

func readI32(r *bytes.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r *bytes.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
