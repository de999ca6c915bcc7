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

// Package httpapi maps the htsget HTTP surface onto
// internal/resolver and internal/engine: it binds query parameters or
// a JSON body into a Query, resolves and dispatches it, and encodes
// the result (or error) as the htsget JSON envelope.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/json"
)

// endpointKind distinguishes the /reads and /variants surfaces, which
// differ in their default format and service-info descriptor; neither
// restricts which format a ticket request may name.
type endpointKind int

const (
	endpointReads endpointKind = iota
	endpointVariants
)

func (k endpointKind) defaultFormat() htsget.Format {
	if k == endpointVariants {
		return htsget.FormatVCF
	}
	return htsget.FormatBAM
}

// postBody is the JSON body accepted by POST /reads/{id} and
// POST /variants/{id}, mirroring the GET query parameters plus an
// optional multi-region list.
type postBody struct {
	Format        string       `json:"format"`
	Class         string       `json:"class"`
	ReferenceName *string      `json:"referenceName"`
	Start         *int64       `json:"start"`
	End           *int64       `json:"end"`
	Fields        []string     `json:"fields"`
	Tags          []string     `json:"tags"`
	NoTags        []string     `json:"notags"`
	Regions       []postRegion `json:"regions"`
}

type postRegion struct {
	ReferenceName string `json:"referenceName"`
	Start         *int64 `json:"start"`
	End           *int64 `json:"end"`
}

// bindQuery constructs a Query from r, reading query parameters for
// GET and a JSON body for POST. For POST requests with a non-empty
// "regions" list, one Query per region is returned; otherwise exactly
// one Query is returned.
func bindQuery(r *http.Request, id string, kind endpointKind) ([]htsget.Query, error) {
	switch r.Method {
	case http.MethodGet:
		q, err := bindFromValues(r.URL.Query(), id, kind)
		if err != nil {
			return nil, err
		}
		return []htsget.Query{q}, nil
	case http.MethodPost:
		return bindFromBody(r, id, kind)
	default:
		return nil, htserr.InvalidInput.New("method %s is not supported", r.Method)
	}
}

func bindFromValues(v map[string][]string, id string, kind endpointKind) (htsget.Query, error) {
	get := func(key string) string {
		if vals, ok := v[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	format := get("format")
	if format == "" {
		format = string(kind.defaultFormat())
	}
	parsedFormat, err := htsget.ParseFormat(format)
	if err != nil {
		return htsget.Query{}, htserr.UnsupportedFormat.Wrap(err)
	}
	class, err := htsget.ParseClass(get("class"))
	if err != nil {
		return htsget.Query{}, htserr.InvalidInput.Wrap(err)
	}

	start, err := parseOptionalInt(get("start"))
	if err != nil {
		return htsget.Query{}, htserr.InvalidInput.Wrap(fmt.Errorf("start: %w", err))
	}
	end, err := parseOptionalInt(get("end"))
	if err != nil {
		return htsget.Query{}, htserr.InvalidInput.Wrap(fmt.Errorf("end: %w", err))
	}

	q := htsget.Query{
		ID:            id,
		Format:        parsedFormat,
		Class:         class,
		ReferenceName: optionalString(get("referenceName")),
		Interval:      htsget.NewInterval(start, end),
		Fields:        splitCSV(get("fields")),
		Tags:          splitCSV(get("tags")),
		NoTags:        splitCSV(get("notags")),
	}
	if err := q.Validate(); err != nil {
		return htsget.Query{}, htserr.InvalidInput.Wrap(err)
	}
	return q, nil
}

func bindFromBody(r *http.Request, id string, kind endpointKind) ([]htsget.Query, error) {
	var body postBody
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, htserr.InvalidInput.Wrap(fmt.Errorf("decoding request body: %w", err))
		}
	}

	format := body.Format
	if format == "" {
		format = string(kind.defaultFormat())
	}
	parsedFormat, err := htsget.ParseFormat(format)
	if err != nil {
		return nil, htserr.UnsupportedFormat.Wrap(err)
	}
	class, err := htsget.ParseClass(body.Class)
	if err != nil {
		return nil, htserr.InvalidInput.Wrap(err)
	}

	base := htsget.Query{
		ID:     id,
		Format: parsedFormat,
		Class:  class,
		Fields: body.Fields,
		Tags:   body.Tags,
		NoTags: body.NoTags,
	}

	if len(body.Regions) == 0 {
		q := base
		q.ReferenceName = body.ReferenceName
		q.Interval = htsget.NewInterval(body.Start, body.End)
		if err := q.Validate(); err != nil {
			return nil, htserr.InvalidInput.Wrap(err)
		}
		return []htsget.Query{q}, nil
	}

	queries := make([]htsget.Query, 0, len(body.Regions))
	for i, region := range body.Regions {
		q := base
		refName := region.ReferenceName
		q.ReferenceName = &refName
		q.Interval = htsget.NewInterval(region.Start, region.End)
		if err := q.Validate(); err != nil {
			return nil, htserr.InvalidInput.Wrap(fmt.Errorf("regions[%d]: %w", i, err))
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func parseOptionalInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
