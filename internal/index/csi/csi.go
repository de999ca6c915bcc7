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

// Package csi parses the coordinate-sorted index format (.csi), the
// generalized successor to BAI used by BCF and optionally by BAM/VCF.
// Unlike BAI, CSI carries its own min_shift/depth binning parameters
// and stores a per-bin loffset instead of a separate linear index.
package csi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-htsget/htsgetd/internal/index"
)

var magic = []byte("CSI\x01")

const pseudoBin = 0x7fffffff // generalized pseudo-bin, analogous to BAI's 37450

// Bin holds a bin's loffset (the CSI replacement for BAI's per-window
// linear index entry) and its chunk list.
type Bin struct {
	LOffset uint64
	Chunks  []index.Chunk
}

// Reference holds one reference sequence's bins.
type Reference struct {
	Bins     map[uint32]Bin
	Unmapped uint64
}

// Index is a parsed .csi file.
type Index struct {
	MinShift   int32
	Depth      int32
	Aux        []byte
	References []Reference
}

// Parse decodes a raw (already BGZF-decompressed) CSI byte stream.
func Parse(data []byte) (*Index, error) {
	r := bytes.NewReader(data)
	var hdr [4]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return nil, fmt.Errorf("reading csi magic: %w", err)
	}
	if !bytes.Equal(hdr[:], magic) {
		return nil, fmt.Errorf("not a csi index: bad magic %x", hdr)
	}

	minShift, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading min_shift: %w", err)
	}
	depth, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading depth: %w", err)
	}
	lAux, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading l_aux: %w", err)
	}
	aux := make([]byte, lAux)
	if _, err := r.Read(aux); err != nil && lAux > 0 {
		return nil, fmt.Errorf("reading aux data: %w", err)
	}

	nRef, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading n_ref: %w", err)
	}

	idx := &Index{MinShift: minShift, Depth: depth, Aux: aux, References: make([]Reference, nRef)}
	for i := int32(0); i < nRef; i++ {
		ref := Reference{Bins: make(map[uint32]Bin)}
		nBin, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ref %d: reading n_bin: %w", i, err)
		}
		for b := int32(0); b < nBin; b++ {
			binID, err := readU32(r)
			if err != nil {
				return nil, fmt.Errorf("ref %d bin %d: reading bin id: %w", i, b, err)
			}
			loffset, err := readU64(r)
			if err != nil {
				return nil, fmt.Errorf("ref %d bin %d: reading loffset: %w", i, b, err)
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
			if binID == pseudoBin {
				if len(chunks) > 0 {
					ref.Unmapped = chunks[0].Begin
				}
				continue
			}
			ref.Bins[binID] = Bin{LOffset: loffset, Chunks: chunks}
		}
		idx.References[i] = ref
	}

	return idx, nil
}

// Chunks returns the merged, loffset-filtered chunks covering
// [beg, end) on reference refID.
func (idx *Index) Chunks(refID int, beg, end int64) ([]index.Chunk, error) {
	if refID < 0 || refID >= len(idx.References) {
		return nil, fmt.Errorf("reference id %d out of range (have %d references)", refID, len(idx.References))
	}
	ref := idx.References[refID]

	var candidates []index.Chunk
	for _, binID := range index.Reg2Bins(beg, end, int(idx.MinShift), int(idx.Depth)) {
		bin, ok := ref.Bins[binID]
		if !ok {
			continue
		}
		for _, c := range bin.Chunks {
			if c.End <= bin.LOffset {
				continue
			}
			candidates = append(candidates, c)
		}
	}
	return index.MergeChunks(candidates), nil
}

// UnmappedStart mirrors bai.Index.UnmappedStart for CSI-indexed files.
func (idx *Index) UnmappedStart() uint64 {
	var best uint64
	for _, ref := range idx.References {
		if ref.Unmapped > best {
			best = ref.Unmapped
		}
		for _, bin := range ref.Bins {
			for _, c := range bin.Chunks {
				if c.End > best {
					best = c.End
				}
			}
		}
	}
	return best
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
