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

// Package local implements storage.Backend over a directory rooted on
// the local filesystem, pairing it with an HTTP data server that serves
// the ranges named in issued tickets.
package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
)

// Backend serves objects rooted at Root, exposing them to clients via
// a companion data server reachable at BaseURL.
type Backend struct {
	name    string
	root    string
	baseURL string
}

// New builds a local Backend. root is the directory objects are
// resolved under; baseURL is the externally reachable prefix the data
// server answering ranged GETs is mounted at (e.g.
// "https://htsget.example.org/data").
func New(name, root, baseURL string) (*Backend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving local storage root %q: %w", root, err)
	}
	return &Backend{
		name:    name,
		root:    abs,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Name implements htsget.StorageHandle.
func (b *Backend) Name() string { return b.name }

// resolve maps a storage key to an absolute filesystem path, refusing
// any key that would escape root via ".." traversal.
func (b *Backend) resolve(key string) (string, error) {
	full := filepath.Join(b.root, key)
	if full != b.root && !strings.HasPrefix(full, b.root+string(filepath.Separator)) {
		return "", htserr.InvalidInput.New("key %q escapes storage root", key)
	}
	return full, nil
}

// Head implements storage.Backend.
func (b *Backend) Head(_ context.Context, key string) (int64, bool, error) {
	path, err := b.resolve(key)
	if err != nil {
		return 0, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, htserr.Transient.Wrap(fmt.Errorf("stat %q: %w", key, err))
	}
	if info.IsDir() {
		return 0, false, nil
	}
	return info.Size(), true, nil
}

// GetRanges implements storage.Backend by reading directly off disk.
func (b *Backend) GetRanges(_ context.Context, key string, ranges []htsget.ByteRange) ([]byte, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, htserr.NotFound.New("object %q not found", key)
		}
		return nil, htserr.Transient.Wrap(fmt.Errorf("opening %q: %w", key, err))
	}
	defer f.Close()

	var out []byte
	for _, rng := range ranges {
		n := rng.Len()
		buf := make([]byte, n)
		if _, err := f.ReadAt(buf, rng.First); err != nil && err != io.EOF {
			return nil, htserr.Transient.Wrap(fmt.Errorf("reading %q range %d-%d: %w", key, rng.First, rng.Last, err))
		}
		out = append(out, buf...)
	}
	return out, nil
}

// TicketURL implements storage.Backend, producing a signed-free URL
// into the local data server plus an HTTP Range header the client must
// send.
func (b *Backend) TicketURL(_ context.Context, key string, rng htsget.ByteRange) (htsget.Url, error) {
	u := fmt.Sprintf("%s/%s", b.baseURL, url.PathEscape(strings.TrimPrefix(key, "/")))
	return htsget.Url{
		URL: u,
		Headers: map[string]string{
			"Range": fmt.Sprintf("bytes=%d-%d", rng.First, rng.Last),
		},
		Class: rng.Purpose.AsClass(),
	}, nil
}

// ServeRange opens key and returns a ReadCloser positioned and bounded
// to rng, for use by the companion data server's HTTP handler.
func (b *Backend) ServeRange(key string, rng htsget.ByteRange) (io.ReadCloser, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, htserr.NotFound.New("object %q not found", key)
		}
		return nil, fmt.Errorf("opening %q: %w", key, err)
	}
	if _, err := f.Seek(rng.First, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking %q to %d: %w", key, rng.First, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(f, rng.Len()),
		Closer: f,
	}, nil
}
