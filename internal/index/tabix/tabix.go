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

// Package tabix parses the tabix index format (.tbi) used by
// BGZF-compressed VCF files: a BAI-style bin/chunk/linear-index triple
// per reference, prefixed with the reference sequence name table that
// lets htsget map a query's referenceName to a ref_id.
package tabix

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-htsget/htsgetd/internal/index"
)

var magic = []byte("TBI\x01")

// Format identifies the record layout tabix indexed (generic, SAM or
// VCF); htsget only ever deals with the VCF case but the field is
// retained for fidelity to the on-disk format.
type Format int32

const (
	FormatGeneric Format = 0
	FormatSAM     Format = 1
	FormatVCF     Format = 2
)

// Reference mirrors bai.Reference: bins keyed by bin ID plus a linear
// index of virtual offsets.
type Reference struct {
	Bins   map[uint32][]index.Chunk
	Linear []uint64
}

// Index is a parsed .tbi file.
type Index struct {
	Format     Format
	ColSeq     int32
	ColBeg     int32
	ColEnd     int32
	Meta       rune
	Skip       int32
	Names      []string // sequence names, in ref_id order
	References []Reference
}

// RefID returns the reference index for a sequence name, or -1 if the
// index carries no entry for it.
func (idx *Index) RefID(name string) int {
	for i, n := range idx.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Parse decodes a raw (already BGZF-decompressed) tabix byte stream.
func Parse(data []byte) (*Index, error) {
	r := bytes.NewReader(data)
	var hdr [4]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return nil, fmt.Errorf("reading tbi magic: %w", err)
	}
	if !bytes.Equal(hdr[:], magic) {
		return nil, fmt.Errorf("not a tbi index: bad magic %x", hdr)
	}

	nRef, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading n_ref: %w", err)
	}
	format, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading format: %w", err)
	}
	colSeq, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading col_seq: %w", err)
	}
	colBeg, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading col_beg: %w", err)
	}
	colEnd, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading col_end: %w", err)
	}
	meta, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	skip, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading skip: %w", err)
	}
	lNm, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("reading l_nm: %w", err)
	}
	nmBuf := make([]byte, lNm)
	if _, err := r.Read(nmBuf); err != nil && lNm > 0 {
		return nil, fmt.Errorf("reading name table: %w", err)
	}

	idx := &Index{
		Format:     Format(format),
		ColSeq:     colSeq,
		ColBeg:     colBeg,
		ColEnd:     colEnd,
		Meta:       rune(meta),
		Skip:       skip,
		Names:      splitNames(nmBuf),
		References: make([]Reference, nRef),
	}

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

	return idx, nil
}

// Chunks returns the merged, linear-index-filtered chunks covering
// [beg, end) on reference refID. Identical binning scheme to bai.Index
// since tabix reuses the classic fixed min_shift/depth parameters.
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
				continue
			}
			candidates = append(candidates, c)
		}
	}
	return index.MergeChunks(candidates), nil
}

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

func splitNames(buf []byte) []string {
	var names []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return names
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
