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
	"github.com/go-htsget/htsgetd/internal/index/csi"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// SearchBCF implements the Searcher contract for BCF files (spec
// §4.3.3): identical chunk-to-range translation to BAM/VCF, but the
// header is the binary BCF header prefix and the sibling index is
// always CSI.
func SearchBCF(ctx context.Context, backend storage.Backend, key string, q htsget.Query) (htsget.Response, error) {
	size, err := requireObject(ctx, backend, key)
	if err != nil {
		return htsget.Response{}, err
	}

	headerEnd, headerBytes, err := scanHeader(ctx, backend, key, size, bcfHeaderComplete)
	if err != nil {
		return htsget.Response{}, err
	}

	eofLen := int64(len(bgzf.EOF))
	headerRange := htsget.ByteRange{First: 0, Last: headerEnd - 1, Purpose: htsget.PurposeHeader}
	eofRange := htsget.ByteRange{First: size - eofLen, Last: size - 1, Purpose: htsget.PurposeEOF}

	if q.Class == htsget.ClassHeader {
		return Assemble(ctx, backend, htsget.FormatBCF, key, []htsget.ByteRange{headerRange, eofRange})
	}

	if q.WholeFile() {
		bodyRange := htsget.ByteRange{First: headerEnd, Last: eofRange.First - 1, Purpose: htsget.PurposeBody}
		return Assemble(ctx, backend, htsget.FormatBCF, key, []htsget.ByteRange{headerRange, bodyRange, eofRange})
	}

	raw, err := fetchAndInflateBGZF(ctx, backend, key+".csi")
	if err != nil {
		if indexNotFound(err) {
			return htsget.Response{}, htserr.NotFound.New("no .csi index found for %q", key)
		}
		return htsget.Response{}, err
	}
	idx, err := csi.Parse(raw)
	if err != nil {
		return htsget.Response{}, htserr.ServerError.Wrap(fmt.Errorf("parsing %s.csi: %w", key, err))
	}

	text, err := bcfHeaderText(headerBytes)
	if err != nil {
		return htsget.Response{}, htserr.ServerError.Wrap(fmt.Errorf("reading BCF header text: %w", err))
	}
	names := contigNames(text)
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
		return Assemble(ctx, backend, htsget.FormatBCF, key, []htsget.ByteRange{headerRange, eofRange})
	}

	ranges := append([]htsget.ByteRange{headerRange}, ChunksToByteRanges(chunks, htsget.PurposeBody, eofRange.First-1)...)
	ranges = append(ranges, eofRange)
	return Assemble(ctx, backend, htsget.FormatBCF, key, ranges)
}
