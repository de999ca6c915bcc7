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

// Package engine turns a resolved, validated htsget Query into the
// ordered set of byte ranges that reconstruct the requested slice of a
// BAM, CRAM, VCF or BCF file (spec §4.3), and packages them into the
// storage URLs that make up the final ticket.
package engine

import (
	"context"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// Searcher resolves one Query against an object named key (plus its
// conventional index object) on backend, producing the htsget ticket.
type Searcher func(ctx context.Context, backend storage.Backend, key string, q htsget.Query) (htsget.Response, error)

// For returns the Searcher responsible for format, or
// htserr.UnsupportedFormat if none is registered.
func For(format htsget.Format) (Searcher, error) {
	switch format {
	case htsget.FormatBAM:
		return SearchBAM, nil
	case htsget.FormatCRAM:
		return SearchCRAM, nil
	case htsget.FormatVCF:
		return SearchVCF, nil
	case htsget.FormatBCF:
		return SearchBCF, nil
	default:
		return nil, htserr.UnsupportedFormat.New("no search engine for format %q", format)
	}
}

// requireObject fails fast with NotFound when the primary object is
// absent, sparing callers from having to special-case a zero-byte
// backend.Head result.
func requireObject(ctx context.Context, backend storage.Backend, key string) (int64, error) {
	size, exists, err := backend.Head(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, htserr.NotFound.New("object %q not found on storage %q", key, backend.Name())
	}
	return size, nil
}
