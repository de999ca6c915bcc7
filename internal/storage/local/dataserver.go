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

package local

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
)

// DataHandler returns the http.Handler a TicketURL issued by this
// Backend actually resolves to: it reads the mandatory "Range: bytes=
// first-last" header the ticket told the client to send, and streams
// exactly that range of the requested key.
func (b *Backend) DataHandler(pathPrefix string) http.Handler {
	prefix := "/" + strings.Trim(pathPrefix, "/") + "/"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		key, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, prefix))
		if err != nil {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		rng, err := parseRangeHeader(r.Header.Get("Range"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		body, err := b.ServeRange(key, rng)
		if err != nil {
			if htserr.NotFound.Has(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/*", rng.First, rng.Last))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Len(), 10))
		w.WriteHeader(http.StatusPartialContent)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = io.Copy(w, body)
	})
}

// parseRangeHeader parses a single-range "bytes=first-last" HTTP Range
// header, the only form a ticket this backend issued ever produces.
func parseRangeHeader(header string) (htsget.ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return htsget.ByteRange{}, fmt.Errorf("missing or malformed Range header")
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return htsget.ByteRange{}, fmt.Errorf("multi-range requests are not supported")
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return htsget.ByteRange{}, fmt.Errorf("malformed Range header %q", header)
	}
	first, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return htsget.ByteRange{}, fmt.Errorf("malformed Range start in %q: %w", header, err)
	}
	last, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return htsget.ByteRange{}, fmt.Errorf("malformed Range end in %q: %w", header, err)
	}
	return htsget.ByteRange{First: first, Last: last}, nil
}
