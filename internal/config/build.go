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

package config

import (
	"fmt"
	"os"

	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/resolver"
	"github.com/go-htsget/htsgetd/internal/storage"
	"github.com/go-htsget/htsgetd/internal/storage/local"
	"github.com/go-htsget/htsgetd/internal/storage/s3"
)

// LocalMount pairs a local.Backend with the path prefix its ticket
// URLs were built against, so main can mount its DataHandler at the
// matching route.
type LocalMount struct {
	PathPrefix string
	Backend    *local.Backend
}

// BuildResolverChain constructs every storage backend a resolver entry
// names and assembles the validated resolver.Chain, in one step so
// main need not know about the storage-kind switch itself. It also
// returns every local.Backend built along the way, since each one
// needs a companion DataHandler mounted on the HTTP server.
func BuildResolverChain(cfg Config) (*resolver.Chain, []LocalMount, error) {
	backends := make(map[string]storage.Backend, len(cfg.Resolvers))
	entries := make([]resolver.EntryConfig, 0, len(cfg.Resolvers))
	var mounts []LocalMount

	for i, r := range cfg.Resolvers {
		name := fmt.Sprintf("resolver-%d-%s", i, r.Storage.Kind)
		backend, err := buildBackend(name, r.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("resolvers[%d]: %w", i, err)
		}
		backends[name] = backend
		entries = append(entries, resolver.EntryConfig{
			Regex:        r.Regex,
			Substitution: r.Substitution,
			StorageName:  name,
			Guard:        buildGuard(r.Guard),
		})
		if lb, ok := backend.(*local.Backend); ok {
			mounts = append(mounts, LocalMount{PathPrefix: r.Storage.PathPrefix, Backend: lb})
		}
	}

	chain, err := resolver.NewChain(entries, backends)
	if err != nil {
		return nil, nil, err
	}
	return chain, mounts, nil
}

func buildBackend(name string, s StorageConfig) (storage.Backend, error) {
	switch s.Kind {
	case "local":
		baseURL := fmt.Sprintf("%s://%s%s", valueOr(s.Scheme, "http"), s.Authority, s.PathPrefix)
		return local.New(name, s.LocalPath, baseURL)
	case "s3":
		creds := s3.Credentials{
			Endpoint:        valueOr(s.Endpoint, os.Getenv("HTSGETD_S3_ENDPOINT")),
			AccessKeyID:     os.Getenv("HTSGETD_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("HTSGETD_S3_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("HTSGETD_S3_SESSION_TOKEN"),
			UseSSL:          s.UseSSL,
			Region:          s.Region,
		}
		return s3.New(name, creds, s.Bucket, s.KeyPrefix, 0)
	default:
		return nil, fmt.Errorf("unrecognized storage kind %q", s.Kind)
	}
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func buildGuard(g GuardConfig) resolver.Guard {
	guard := resolver.NewGuard()
	if len(g.AllowReferenceNames) > 0 {
		guard.AllowReferenceNames = resolver.NewAllowSet(g.AllowReferenceNames)
	}
	if len(g.AllowFields) > 0 {
		guard.AllowFields = resolver.NewAllowSet(g.AllowFields)
	}
	if len(g.AllowTags) > 0 {
		guard.AllowTags = resolver.NewAllowSet(g.AllowTags)
	}
	for _, f := range g.AllowFormats {
		guard.AllowFormats = append(guard.AllowFormats, htsget.Format(f))
	}
	for _, c := range g.AllowClasses {
		guard.AllowClasses = append(guard.AllowClasses, htsget.Class(c))
	}
	guard.AllowIntervalStart = g.AllowIntervalStart
	guard.AllowIntervalEnd = g.AllowIntervalEnd
	return guard
}
