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

// Package htsget holds the request/response data model shared by the
// resolver, storage and format-engine layers: Query, ByteRange, Url and
// Response, plus the class/format enums the rest of the core switches on.
package htsget

import "fmt"

// Format identifies one of the four container formats this server
// understands.
type Format string

const (
	FormatBAM  Format = "BAM"
	FormatCRAM Format = "CRAM"
	FormatVCF  Format = "VCF"
	FormatBCF  Format = "BCF"
)

// ParseFormat validates a protocol-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatBAM, FormatCRAM, FormatVCF, FormatBCF:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Class is the htsget "class" parameter: the full record body, or just
// enough to reconstruct the file header.
type Class string

const (
	ClassBody   Class = "body"
	ClassHeader Class = "header"
)

// ParseClass validates a protocol-supplied class string. An empty
// string defaults to ClassBody.
func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case "":
		return ClassBody, nil
	case ClassBody, ClassHeader:
		return Class(s), nil
	default:
		return "", fmt.Errorf("unsupported class %q", s)
	}
}

// Interval is a half-open, 0-based genomic interval [Start, End). Either
// bound may be absent, meaning unbounded in that direction.
type Interval struct {
	Start    *int64
	End      *int64
	HasStart bool
	HasEnd   bool
}

// NewInterval builds an Interval, tracking which bounds were actually
// supplied so that "absent" and "zero" remain distinguishable.
func NewInterval(start, end *int64) Interval {
	iv := Interval{}
	if start != nil {
		iv.Start = start
		iv.HasStart = true
	}
	if end != nil {
		iv.End = end
		iv.HasEnd = true
	}
	return iv
}

// Validate enforces the Query invariant that Start <= End when both are
// bound.
func (iv Interval) Validate() error {
	if iv.HasStart && iv.HasEnd && *iv.Start > *iv.End {
		return fmt.Errorf("invalid interval: start %d > end %d", *iv.Start, *iv.End)
	}
	return nil
}

// Query is the immutable request descriptor produced by the HTTP
// mapper and consumed by the resolver chain and search façade.
type Query struct {
	ID             string
	Format         Format
	Class          Class
	ReferenceName  *string
	Interval       Interval
	Fields         []string
	Tags           []string
	NoTags         []string
}

// UnmappedOnly reports whether ReferenceName is the "*" sentinel
// denoting "unmapped reads only" (BAM/CRAM only).
func (q Query) UnmappedOnly() bool {
	return q.ReferenceName != nil && *q.ReferenceName == "*"
}

// WholeFile reports whether no reference restriction was supplied at
// all, meaning the whole file should be ticketed.
func (q Query) WholeFile() bool {
	return q.ReferenceName == nil
}

// Validate enforces the Query invariants from spec §3: an interval
// implies a concrete reference name, bounds are ordered, and HEADER
// class implies no interval.
func (q Query) Validate() error {
	if q.Interval.HasStart || q.Interval.HasEnd {
		if q.ReferenceName == nil {
			return fmt.Errorf("interval requires a reference name")
		}
		if q.UnmappedOnly() {
			return fmt.Errorf("interval not allowed with reference name \"*\"")
		}
	}
	if err := q.Interval.Validate(); err != nil {
		return err
	}
	if q.Class == ClassHeader && (q.Interval.HasStart || q.Interval.HasEnd) {
		return fmt.Errorf("header class request must not specify an interval")
	}
	return nil
}

// StorageHandle is an opaque reference to a configured storage backend,
// implemented by internal/storage.
type StorageHandle interface {
	Name() string
}

// ResolvedQuery is a Query plus the concrete storage location the
// resolver chain found for it.
type ResolvedQuery struct {
	Query   Query
	Storage StorageHandle
	Key     string
}

// Purpose tags a ByteRange with why it is part of the ticket.
type Purpose string

const (
	PurposeHeader Purpose = "header"
	PurposeBody   Purpose = "body"
	PurposeEOF    Purpose = "eof"
	PurposeIndex  Purpose = "index"
)

// ByteRange is an inclusive [First, Last] byte range over the primary
// object, tagged with its purpose in the ticket.
type ByteRange struct {
	First   int64
	Last    int64
	Purpose Purpose
}

// Len returns the number of bytes the range spans.
func (r ByteRange) Len() int64 {
	return r.Last - r.First + 1
}

// AsClass maps a ByteRange's Purpose onto the Url.Class the ticket
// reports: header-only ranges are tagged "header", everything else
// (body, eof, index bytes folded into the body stream) is "body".
func (p Purpose) AsClass() Class {
	if p == PurposeHeader {
		return ClassHeader
	}
	return ClassBody
}

// Url is one entry of the htsget ticket response. Purpose is not part
// of the wire format; it lets callers that combine several Responses
// (multi-region POST requests) tell a header or EOF range apart from
// an ordinary body range without re-deriving it from Class.
type Url struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Class   Class             `json:"class,omitempty"`
	Purpose Purpose           `json:"-"`
}

// Response is the htsget ticket: an ordered list of Urls whose bodies,
// concatenated in order, reconstruct a valid sub-file.
type Response struct {
	Format Format `json:"format"`
	Urls   []Url  `json:"urls"`
}
