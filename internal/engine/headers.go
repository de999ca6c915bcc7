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
	"context"
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// initialHeaderFetch is how much of an object's compressed prefix is
// read in one GET before scanning it for a complete header. Real-world
// SAM/VCF headers comfortably fit in this window; a header that
// doesn't surfaces as an explicit error rather than many small
// ranged reads.
const initialHeaderFetch = 1 << 20 // 1 MiB

// scanHeader fetches a bounded prefix of key and walks its BGZF blocks
// until isComplete reports the header fully decoded, returning the
// compressed end offset of the header and the concatenated inflated
// header bytes.
func scanHeader(ctx context.Context, backend storage.Backend, key string, size int64, isComplete func([]byte) (bool, error)) (int64, []byte, error) {
	fetch := int64(initialHeaderFetch)
	if fetch > size {
		fetch = size
	}
	raw, err := backend.GetRanges(ctx, key, []htsget.ByteRange{{First: 0, Last: fetch - 1, Purpose: htsget.PurposeHeader}})
	if err != nil {
		return 0, nil, fmt.Errorf("fetching header prefix of %q: %w", key, err)
	}

	var headerBytes []byte
	offset, err := bgzf.ScanHeaderBytes(raw, func(acc []byte) (bool, error) {
		done, err := isComplete(acc)
		if done {
			headerBytes = acc
		}
		return done, err
	})
	if err != nil {
		return 0, nil, htserr.ServerError.Wrap(fmt.Errorf("scanning header of %q: %w", key, err))
	}
	return offset, headerBytes, nil
}

// bamHeaderComplete reports whether data holds a fully-decoded BAM
// binary header: magic, l_text-byte SAM text, and the n_ref-entry
// reference list.
func bamHeaderComplete(data []byte) (bool, error) {
	if len(data) < 4 {
		return false, nil
	}
	if string(data[:4]) != "BAM\x01" {
		return false, fmt.Errorf("not a BAM header: bad magic %q", data[:4])
	}
	if len(data) < 8 {
		return false, nil
	}
	lText := int(int32(binary.LittleEndian.Uint32(data[4:8])))
	need := 8 + lText + 4
	if len(data) < need {
		return false, nil
	}
	nRef := int(int32(binary.LittleEndian.Uint32(data[8+lText : 8+lText+4])))
	off := need
	for i := 0; i < nRef; i++ {
		if len(data) < off+4 {
			return false, nil
		}
		lName := int(int32(binary.LittleEndian.Uint32(data[off : off+4])))
		off += 4
		need = off + lName + 4
		if len(data) < need {
			return false, nil
		}
		off = need
	}
	return true, nil
}

// bamReference is one entry of a BAM header's reference sequence
// dictionary: a name and its declared length, in ref_id order.
type bamReference struct {
	Name   string
	Length int64
}

// bamReferences extracts the reference sequence dictionary from a
// fully decoded BAM binary header, in ref_id order, matching the order
// bai.Index/csi.Index chunk lookups expect.
func bamReferences(data []byte) ([]bamReference, error) {
	if len(data) < 8 || string(data[:4]) != "BAM\x01" {
		return nil, fmt.Errorf("not a BAM header")
	}
	lText := int(int32(binary.LittleEndian.Uint32(data[4:8])))
	off := 8 + lText
	if len(data) < off+4 {
		return nil, fmt.Errorf("truncated BAM header: missing n_ref")
	}
	nRef := int(int32(binary.LittleEndian.Uint32(data[off : off+4])))
	off += 4

	refs := make([]bamReference, 0, nRef)
	for i := 0; i < nRef; i++ {
		if len(data) < off+4 {
			return nil, fmt.Errorf("truncated BAM header: missing l_name for ref %d", i)
		}
		lName := int(int32(binary.LittleEndian.Uint32(data[off : off+4])))
		off += 4
		if len(data) < off+lName+4 {
			return nil, fmt.Errorf("truncated BAM header: missing name/l_ref for ref %d", i)
		}
		// lName includes the trailing NUL.
		name := string(data[off : off+lName-1])
		lRef := int64(int32(binary.LittleEndian.Uint32(data[off+lName : off+lName+4])))
		refs = append(refs, bamReference{Name: name, Length: lRef})
		off += lName + 4
	}
	return refs, nil
}

func bamRefID(refs []bamReference, name string) int {
	for i, r := range refs {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// vcfHeaderComplete reports whether data's accumulated text contains
// the fully terminated "#CHROM" column header line, the last line of a
// VCF text header.
func vcfHeaderComplete(data []byte) (bool, error) {
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		line := data[start:i]
		if len(line) >= 6 && string(line[:6]) == "#CHROM" {
			return true, nil
		}
		start = i + 1
	}
	return false, nil
}

// bcfHeaderComplete reports whether data holds a fully-decoded BCF2
// header: magic, l_text, and l_text bytes of VCF-style header text.
func bcfHeaderComplete(data []byte) (bool, error) {
	if len(data) < 5 {
		return false, nil
	}
	if string(data[:3]) != "BCF" {
		return false, fmt.Errorf("not a BCF header: bad magic %q", data[:3])
	}
	if len(data) < 9 {
		return false, nil
	}
	lText := int(binary.LittleEndian.Uint32(data[5:9]))
	return len(data) >= 9+lText, nil
}

func bcfHeaderText(data []byte) ([]byte, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("truncated BCF header")
	}
	lText := int(binary.LittleEndian.Uint32(data[5:9]))
	if len(data) < 9+lText {
		return nil, fmt.Errorf("truncated BCF header text")
	}
	return data[9 : 9+lText], nil
}

var contigIDPattern = regexp.MustCompile(`##contig=<ID=([^,>]+)`)

// contigNames extracts ##contig=<ID=...> declarations from VCF/BCF
// header text, in declaration order, which is the order CSI bin
// lookups index contigs by.
func contigNames(text []byte) []string {
	matches := contigIDPattern.FindAllSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, string(m[1]))
	}
	return names
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
