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

	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// Assemble merges ranges per spec §4.3.5 and turns each surviving
// range into a ticket Url against key on backend, in byte order.
func Assemble(ctx context.Context, backend storage.Backend, format htsget.Format, key string, ranges []htsget.ByteRange) (htsget.Response, error) {
	merged := MergeByteRanges(ranges)
	urls := make([]htsget.Url, 0, len(merged))
	for _, r := range merged {
		u, err := backend.TicketURL(ctx, key, r)
		if err != nil {
			return htsget.Response{}, fmt.Errorf("issuing ticket url for %s range %d-%d: %w", key, r.First, r.Last, err)
		}
		u.Purpose = r.Purpose
		urls = append(urls, u)
	}
	return htsget.Response{Format: format, Urls: urls}, nil
}
