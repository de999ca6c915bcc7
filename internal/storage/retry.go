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

package storage

import (
	"context"
	"time"

	"github.com/go-htsget/htsgetd/internal/htserr"
)

// RetryPolicy bounds the exponential backoff applied to operations
// that fail with htserr.Transient (spec §5 "Retries").
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// defaultMaxAttempts backs DefaultRetryPolicy; ConfigureRetries
// overrides it from the loaded server.retry_attempts setting at
// process start, before any request is served.
var defaultMaxAttempts = 3

// ConfigureRetries sets the attempt count DefaultRetryPolicy returns.
// Call once during startup; it is not safe to call concurrently with
// in-flight requests.
func ConfigureRetries(maxAttempts int) {
	if maxAttempts > 0 {
		defaultMaxAttempts = maxAttempts
	}
}

// DefaultRetryPolicy matches spec §5: server.retry_attempts total
// attempts (3 absent configuration), starting at 100ms and doubling up
// to a 2s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Retry runs op until it succeeds, exhausts p.MaxAttempts, or returns a
// non-Transient error. Only htserr.Transient failures are retried;
// every other error (including ctx cancellation) returns immediately.
func Retry(ctx context.Context, p RetryPolicy, op func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !htserr.Transient.Has(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return htserr.ServerError.Wrap(lastErr)
}
