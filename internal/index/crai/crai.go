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

// Package crai parses the CRAM index format (.crai): a gzip-compressed
// (not BGZF — a plain, single-member gzip stream), tab-separated text
// file, one line per slice, sorted by reference and alignment start.
package crai

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// UnmappedRefID is the sentinel ref_id CRAI uses for unplaced/unmapped
// records.
const UnmappedRefID = -1

// Record is one parsed .crai line: a slice's reference coordinates and
// its physical location within the CRAM stream.
type Record struct {
	RefID           int
	AlignmentStart  int64
	AlignmentSpan   int64
	ContainerOffset int64
	SliceOffset     int64
	SliceSize       int64
}

// End returns the exclusive end of the alignment interval this slice
// covers: AlignmentStart + AlignmentSpan.
func (r Record) End() int64 {
	return r.AlignmentStart + r.AlignmentSpan
}

// ContainerEnd returns the offset one past the end of the container
// this slice's bytes live in.
func (r Record) ContainerEnd() int64 {
	return r.ContainerOffset + r.SliceSize
}

// Index is a parsed .crai file, sorted by (RefID, AlignmentStart) as
// CRAM guarantees on disk.
type Index struct {
	Records []Record
}

// Parse decompresses and decodes a raw .crai file.
func Parse(raw []byte) (*Index, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening crai gzip stream: %w", err)
	}
	defer zr.Close()

	idx := &Index{}
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			return nil, fmt.Errorf("crai line %d: expected 6 fields, got %d", lineNo, len(fields))
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("crai line %d: %w", lineNo, err)
		}
		idx.Records = append(idx.Records, rec)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading crai stream: %w", err)
	}

	sort.SliceStable(idx.Records, func(i, j int) bool {
		if idx.Records[i].RefID != idx.Records[j].RefID {
			return idx.Records[i].RefID < idx.Records[j].RefID
		}
		return idx.Records[i].AlignmentStart < idx.Records[j].AlignmentStart
	})

	return idx, nil
}

func parseRecord(fields []string) (Record, error) {
	nums := make([]int64, 6)
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("field %d %q: %w", i, f, err)
		}
		nums[i] = v
	}
	return Record{
		RefID:           int(nums[0]),
		AlignmentStart:  nums[1],
		AlignmentSpan:   nums[2],
		ContainerOffset: nums[3],
		SliceOffset:     nums[4],
		SliceSize:       nums[5],
	}, nil
}

// Overlapping returns records on refID whose [AlignmentStart, End())
// overlaps [beg, end), in on-disk order.
func (idx *Index) Overlapping(refID int, beg, end int64) []Record {
	var out []Record
	for _, r := range idx.Records {
		if r.RefID != refID {
			continue
		}
		if r.AlignmentStart < end && beg < r.End() {
			out = append(out, r)
		}
	}
	return out
}

// Unmapped returns all unplaced-unmapped records (RefID ==
// UnmappedRefID), in on-disk order.
func (idx *Index) Unmapped() []Record {
	var out []Record
	for _, r := range idx.Records {
		if r.RefID == UnmappedRefID {
			out = append(out, r)
		}
	}
	return out
}

// FirstDataContainerOffset returns the ContainerOffset of the
// earliest-positioned slice in the index, used to size the CRAM header
// range (everything before the first data container).
func (idx *Index) FirstDataContainerOffset() (int64, bool) {
	if len(idx.Records) == 0 {
		return 0, false
	}
	best := idx.Records[0].ContainerOffset
	for _, r := range idx.Records[1:] {
		if r.ContainerOffset < best {
			best = r.ContainerOffset
		}
	}
	return best, true
}
