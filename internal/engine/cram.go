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
	"regexp"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/index/crai"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// cramEOFContainer is the fixed terminal container every valid CRAM
// v3 stream ends with, analogous to BGZF's EOF sentinel. CRAM has no
// BGZF framing, so this is appended as its own trailing range rather
// than discovered by block scanning.
var cramEOFContainer = []byte{
	0x0f, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff,
	0x0f, 0xe0, 0x45, 0x4f, 0x46, 0x00, 0x00, 0x00,
	0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x06, 0x06,
	0x01, 0x00, 0x01, 0x00, 0x01, 0x00, 0xee, 0x63,
	0x01, 0x4b,
}

var sqNamePattern = regexp.MustCompile(`@SQ\tSN:(\S+)`)

// cramReferenceNames extracts @SQ SN: names from the embedded SAM text
// header, in declaration order, the order CRAI's integer ref_id
// addresses.
func cramReferenceNames(headerText []byte) []string {
	matches := sqNamePattern.FindAllSubmatch(headerText, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, string(m[1]))
	}
	return names
}

// SearchCRAM implements the Searcher contract for CRAM files (spec
// §4.3.4): no BGZF framing, so the header range and EOF range come
// from the CRAI index and the fixed terminal container rather than
// block scanning.
func SearchCRAM(ctx context.Context, backend storage.Backend, key string, q htsget.Query) (htsget.Response, error) {
	size, err := requireObject(ctx, backend, key)
	if err != nil {
		return htsget.Response{}, err
	}

	raw, err := fetchWhole(ctx, backend, key+".crai")
	if err != nil {
		if indexNotFound(err) && q.WholeFile() {
			// spec §4.5: whole-file requests may fall back when the
			// index itself is missing.
			return wholeCRAMFile(ctx, backend, key, size)
		}
		if indexNotFound(err) {
			return htsget.Response{}, htserr.NotFound.New("no .crai index found for %q", key)
		}
		return htsget.Response{}, err
	}
	idx, err := crai.Parse(raw)
	if err != nil {
		return htsget.Response{}, htserr.ServerError.Wrap(fmt.Errorf("parsing %s.crai: %w", key, err))
	}

	headerEnd, ok := idx.FirstDataContainerOffset()
	if !ok {
		headerEnd = size
	}
	headerRange := htsget.ByteRange{First: 0, Last: headerEnd - 1, Purpose: htsget.PurposeHeader}
	eofRange := htsget.ByteRange{First: size - int64(len(cramEOFContainer)), Last: size - 1, Purpose: htsget.PurposeEOF}

	if q.Class == htsget.ClassHeader {
		return Assemble(ctx, backend, htsget.FormatCRAM, key, []htsget.ByteRange{headerRange, eofRange})
	}

	if q.WholeFile() {
		bodyRange := htsget.ByteRange{First: headerEnd, Last: eofRange.First - 1, Purpose: htsget.PurposeBody}
		return Assemble(ctx, backend, htsget.FormatCRAM, key, []htsget.ByteRange{headerRange, bodyRange, eofRange})
	}

	var records []crai.Record
	if q.UnmappedOnly() {
		records = idx.Unmapped()
	} else {
		headerText, _, err := fetchHeaderText(ctx, backend, key, headerEnd)
		if err != nil {
			return htsget.Response{}, err
		}
		names := cramReferenceNames(headerText)
		refID := indexOf(names, *q.ReferenceName)
		if refID < 0 {
			return htsget.Response{}, htserr.NotFound.New("reference %q not present in %q", *q.ReferenceName, key)
		}
		beg, end := intervalBounds(q.Interval, 0)
		records = idx.Overlapping(refID, beg, end)
	}

	if len(records) == 0 {
		return Assemble(ctx, backend, htsget.FormatCRAM, key, []htsget.ByteRange{headerRange, eofRange})
	}

	ranges := []htsget.ByteRange{headerRange}
	for _, rec := range records {
		ranges = append(ranges, htsget.ByteRange{First: rec.ContainerOffset, Last: rec.ContainerEnd() - 1, Purpose: htsget.PurposeBody})
	}
	ranges = append(ranges, eofRange)
	return Assemble(ctx, backend, htsget.FormatCRAM, key, ranges)
}

// fetchHeaderText reads the CRAM file header bytes, [0, headerEnd), in
// full for SAM text scanning.
func fetchHeaderText(ctx context.Context, backend storage.Backend, key string, headerEnd int64) ([]byte, int64, error) {
	if headerEnd <= 0 {
		return nil, 0, nil
	}
	data, err := backend.GetRanges(ctx, key, []htsget.ByteRange{{First: 0, Last: headerEnd - 1, Purpose: htsget.PurposeHeader}})
	if err != nil {
		return nil, 0, fmt.Errorf("fetching CRAM header of %q: %w", key, err)
	}
	return data, headerEnd, nil
}

// wholeCRAMFile ticketing an entire CRAM object as a single range,
// used when no .crai sibling exists and the request doesn't need one.
func wholeCRAMFile(ctx context.Context, backend storage.Backend, key string, size int64) (htsget.Response, error) {
	return Assemble(ctx, backend, htsget.FormatCRAM, key, []htsget.ByteRange{
		{First: 0, Last: size - 1, Purpose: htsget.PurposeBody},
	})
}
