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
	"github.com/go-htsget/htsgetd/internal/index/csi"
	"github.com/go-htsget/htsgetd/internal/index/tabix"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// vcfIndex unifies tabix.Index and csi.Index behind the chunk lookup
// the VCF engine needs; reference-name resolution is handled outside
// the interface since the two formats source names differently.
type vcfIndex interface {
	Chunks(refID int, beg, end int64) ([]index.Chunk, error)
}

// loadVCFIndex tries key+".tbi" then key+".csi", returning the parsed
// index plus the ordered contig name list used to resolve
// reference_name to ref_id.
func loadVCFIndex(ctx context.Context, backend storage.Backend, key string, headerText []byte) (vcfIndex, []string, error) {
	if raw, err := fetchAndInflateBGZF(ctx, backend, key+".tbi"); err == nil {
		idx, perr := tabix.Parse(raw)
		if perr != nil {
			return nil, nil, htserr.ServerError.Wrap(fmt.Errorf("parsing %s.tbi: %w", key, perr))
		}
		return idx, idx.Names, nil
	} else if !indexNotFound(err) {
		return nil, nil, err
	}

	raw, err := fetchAndInflateBGZF(ctx, backend, key+".csi")
	if err != nil {
		if indexNotFound(err) {
			return nil, nil, htserr.NotFound.New("no .tbi or .csi index found for %q", key)
		}
		return nil, nil, err
	}
	idx, err := csi.Parse(raw)
	if err != nil {
		return nil, nil, htserr.ServerError.Wrap(fmt.Errorf("parsing %s.csi: %w", key, err))
	}
	return idx, contigNames(headerText), nil
}

// SearchVCF implements the Searcher contract for VCF files (spec
// §4.3.2).
func SearchVCF(ctx context.Context, backend storage.Backend, key string, q htsget.Query) (htsget.Response, error) {
	size, err := requireObject(ctx, backend, key)
	if err != nil {
		return htsget.Response{}, err
	}

	headerEnd, headerBytes, err := scanHeader(ctx, backend, key, size, vcfHeaderComplete)
	if err != nil {
		return htsget.Response{}, err
	}

	eofLen := int64(len(bgzf.EOF))
	headerRange := htsget.ByteRange{First: 0, Last: headerEnd - 1, Purpose: htsget.PurposeHeader}
	eofRange := htsget.ByteRange{First: size - eofLen, Last: size - 1, Purpose: htsget.PurposeEOF}

	if q.Class == htsget.ClassHeader {
		return Assemble(ctx, backend, htsget.FormatVCF, key, []htsget.ByteRange{headerRange, eofRange})
	}

	if q.WholeFile() {
		bodyRange := htsget.ByteRange{First: headerEnd, Last: eofRange.First - 1, Purpose: htsget.PurposeBody}
		return Assemble(ctx, backend, htsget.FormatVCF, key, []htsget.ByteRange{headerRange, bodyRange, eofRange})
	}

	idx, names, err := loadVCFIndex(ctx, backend, key, headerBytes)
	if err != nil {
		return htsget.Response{}, err
	}

	refID := indexOf(names, *q.ReferenceName)
	if refID < 0 {
		return htsget.Response{}, htserr.NotFound.New("reference %q not present in %q", *q.ReferenceName, key)
	}
	beg, end := intervalBounds(q.Interval, 0)

	chunks, err := idx.Chunks(refID, beg, end)
	if err != nil {
		return htsget.Response{}, htserr.ServerError.Wrap(fmt.Errorf("resolving chunks for %q ref %d: %w", key, refID, err))
	}
	if len(chunks) == 0 {
		return Assemble(ctx, backend, htsget.FormatVCF, key, []htsget.ByteRange{headerRange, eofRange})
	}

	ranges := append([]htsget.ByteRange{headerRange}, ChunksToByteRanges(chunks, htsget.PurposeBody, eofRange.First-1)...)
	ranges = append(ranges, eofRange)
	return Assemble(ctx, backend, htsget.FormatVCF, key, ranges)
}
