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

// Package storage defines the byte-addressable object store contract
// (spec §4.2) consumed by the search façade and format engines, plus
// the two reference backends: a local-file backend and an S3 backend
// built on minio-go.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
)

// Backend is the storage contract every format engine is written
// against. Implementations must be safe for concurrent use by many
// in-flight requests.
type Backend interface {
	htsget.StorageHandle

	// Head reports an object's size and existence. A missing object
	// returns (0, false, nil), not an error.
	Head(ctx context.Context, key string) (size int64, exists bool, err error)

	// GetRanges fetches one or more byte ranges of key and returns
	// their concatenated bytes in range order. Used only by the search
	// core to read index/header bytes it must interpret itself.
	GetRanges(ctx context.Context, key string, ranges []htsget.ByteRange) ([]byte, error)

	// TicketURL produces the Url a client will later fetch to obtain
	// rng's bytes of key.
	TicketURL(ctx context.Context, key string, rng htsget.ByteRange) (htsget.Url, error)
}

// Timeouts bounds how long a single storage operation may run before
// it is treated as Transient (spec §5 "Timeouts").
type Timeouts struct {
	Operation time.Duration
}

// DefaultTimeouts matches spec §5's "on the order of seconds" default.
func DefaultTimeouts() Timeouts {
	return Timeouts{Operation: 10 * time.Second}
}

// WithTimeout runs fn under ctx bounded by t.Operation, translating a
// context deadline exceeded into a Transient error so the retry layer
// recognizes it.
func WithTimeout(ctx context.Context, t Timeouts, fn func(context.Context) error) error {
	if t.Operation <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, t.Operation)
	defer cancel()
	err := fn(cctx)
	if err != nil && cctx.Err() != nil {
		return htserr.Transient.Wrap(fmt.Errorf("storage operation timed out after %s: %w", t.Operation, err))
	}
	return err
}
