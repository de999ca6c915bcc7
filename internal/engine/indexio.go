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
	"bytes"
	"context"
	"fmt"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// defaultIntervalEnd bounds an open-ended interval's query end when the
// true reference length isn't known to the caller, kept small enough
// that index.Reg2Bins's bin enumeration stays cheap.
const defaultIntervalEnd = int64(1) << 31

// intervalBounds resolves iv against a known reference length (0 if
// unknown), applying defaultIntervalEnd when both the query and the
// reference length leave the upper bound open.
func intervalBounds(iv htsget.Interval, refLength int64) (beg, end int64) {
	if iv.HasStart {
		beg = *iv.Start
	}
	switch {
	case iv.HasEnd:
		end = *iv.End
	case refLength > 0:
		end = refLength
	default:
		end = defaultIntervalEnd
	}
	return beg, end
}

// fetchWhole reads an entire object's bytes, failing with NotFound if
// it doesn't exist. Transient storage errors are retried per spec
// §4.5 ("Storage Transient error during index read → retried by the
// engine up to a bounded number of attempts with backoff").
func fetchWhole(ctx context.Context, backend storage.Backend, key string) ([]byte, error) {
	var size int64
	var exists bool
	err := storage.Retry(ctx, storage.DefaultRetryPolicy(), func(ctx context.Context) error {
		var herr error
		size, exists, herr = backend.Head(ctx, key)
		return herr
	})
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, htserr.NotFound.New("object %q not found on storage %q", key, backend.Name())
	}
	if size == 0 {
		return nil, nil
	}

	var data []byte
	err = storage.Retry(ctx, storage.DefaultRetryPolicy(), func(ctx context.Context) error {
		var gerr error
		data, gerr = backend.GetRanges(ctx, key, []htsget.ByteRange{{First: 0, Last: size - 1, Purpose: htsget.PurposeIndex}})
		return gerr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// fetchAndInflateBGZF reads key in full and inflates every BGZF member
// up to (but not including) the terminal EOF sentinel, for indices
// (CSI, tabix) that are themselves BGZF-compressed.
func fetchAndInflateBGZF(ctx context.Context, backend storage.Backend, key string) ([]byte, error) {
	raw, err := fetchWhole(ctx, backend, key)
	if err != nil {
		return nil, err
	}
	return inflateBGZFStream(raw)
}

func inflateBGZFStream(data []byte) ([]byte, error) {
	var out []byte
	offset := int64(0)
	for offset < int64(len(data)) {
		hdr, err := bgzf.ReadBlockHeader(bytes.NewReader(data[offset:]), offset)
		if err != nil {
			return nil, fmt.Errorf("reading bgzf block at offset %d: %w", offset, err)
		}
		if hdr.IsEOF() {
			break
		}
		payload, err := bgzf.InflateBlock(data[hdr.Offset:hdr.End()])
		if err != nil {
			return nil, fmt.Errorf("inflating bgzf block at offset %d: %w", offset, err)
		}
		out = append(out, payload...)
		offset = hdr.End()
	}
	return out, nil
}

// indexNotFound reports whether err denotes a missing index object, as
// opposed to any other storage or parse failure.
func indexNotFound(err error) bool {
	return htserr.NotFound.Has(err)
}
