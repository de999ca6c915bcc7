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
	"fmt"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/index"
	"github.com/go-htsget/htsgetd/internal/index/bai"
	"github.com/go-htsget/htsgetd/internal/index/csi"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// bamIndex is the subset of bai.Index/csi.Index's interface the BAM
// engine needs, letting it stay agnostic to which of the two on-disk
// formats backed the sibling index object.
type bamIndex interface {
	Chunks(refID int, beg, end int64) ([]index.Chunk, error)
	UnmappedStart() uint64
}

// loadBAMIndex tries key+".bai" then key+".csi", in the order spec §6
// documents as acceptable, returning the first one found.
func loadBAMIndex(ctx context.Context, backend storage.Backend, key string) (bamIndex, error) {
	if raw, err := fetchWhole(ctx, backend, key+".bai"); err == nil {
		idx, perr := bai.Parse(raw)
		if perr != nil {
			return nil, htserr.ServerError.Wrap(fmt.Errorf("parsing %s.bai: %w", key, perr))
		}
		return idx, nil
	} else if !indexNotFound(err) {
		return nil, err
	}

	raw, err := fetchAndInflateBGZF(ctx, backend, key+".csi")
	if err != nil {
		if indexNotFound(err) {
			return nil, htserr.NotFound.New("no .bai or .csi index found for %q", key)
		}
		return nil, err
	}
	idx, err := csi.Parse(raw)
	if err != nil {
		return nil, htserr.ServerError.Wrap(fmt.Errorf("parsing %s.csi: %w", key, err))
	}
	return idx, nil
}

// SearchBAM implements the Searcher contract for BAM files (spec
// §4.3.1).
func SearchBAM(ctx context.Context, backend storage.Backend, key string, q htsget.Query) (htsget.Response, error) {
	size, err := requireObject(ctx, backend, key)
	if err != nil {
		return htsget.Response{}, err
	}

	headerEnd, headerBytes, err := scanHeader(ctx, backend, key, size, bamHeaderComplete)
	if err != nil {
		return htsget.Response{}, err
	}

	eofLen := int64(len(bgzf.EOF))
	headerRange := htsget.ByteRange{First: 0, Last: headerEnd - 1, Purpose: htsget.PurposeHeader}
	eofRange := htsget.ByteRange{First: size - eofLen, Last: size - 1, Purpose: htsget.PurposeEOF}

	if q.Class == htsget.ClassHeader {
		return Assemble(ctx, backend, htsget.FormatBAM, key, []htsget.ByteRange{headerRange, eofRange})
	}

	if q.WholeFile() {
		bodyRange := htsget.ByteRange{First: headerEnd, Last: eofRange.First - 1, Purpose: htsget.PurposeBody}
		return Assemble(ctx, backend, htsget.FormatBAM, key, []htsget.ByteRange{headerRange, bodyRange, eofRange})
	}

	idx, err := loadBAMIndex(ctx, backend, key)
	if err != nil {
		if indexNotFound(err) {
			// spec §4.5: index-miss only falls back to whole-file when
			// reference_name is absent; we're past that branch here.
			return htsget.Response{}, err
		}
		return htsget.Response{}, err
	}

	if q.UnmappedOnly() {
		start := bgzf.VirtualOffset(idx.UnmappedStart())
		bodyRange := htsget.ByteRange{First: start.Compressed(), Last: eofRange.First - 1, Purpose: htsget.PurposeBody}
		return Assemble(ctx, backend, htsget.FormatBAM, key, []htsget.ByteRange{headerRange, bodyRange, eofRange})
	}

	refs, err := bamReferences(headerBytes)
	if err != nil {
		return htsget.Response{}, htserr.ServerError.Wrap(fmt.Errorf("parsing BAM reference dictionary: %w", err))
	}
	refID := bamRefID(refs, *q.ReferenceName)
	if refID < 0 {
		return htsget.Response{}, htserr.NotFound.New("reference %q not present in %q", *q.ReferenceName, key)
	}

	var refLength int64
	if refID < len(refs) {
		refLength = refs[refID].Length
	}
	beg, end := intervalBounds(q.Interval, refLength)

	chunks, err := idx.Chunks(refID, beg, end)
	if err != nil {
		return htsget.Response{}, htserr.ServerError.Wrap(fmt.Errorf("resolving chunks for %q ref %d: %w", key, refID, err))
	}
	if len(chunks) == 0 {
		// spec §9 open question: no bins in range ⇒ empty body, not NotFound.
		return Assemble(ctx, backend, htsget.FormatBAM, key, []htsget.ByteRange{headerRange, eofRange})
	}

	ranges := append([]htsget.ByteRange{headerRange}, ChunksToByteRanges(chunks, htsget.PurposeBody, eofRange.First-1)...)
	ranges = append(ranges, eofRange)
	return Assemble(ctx, backend, htsget.FormatBAM, key, ranges)
}
