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

// Package htserr implements the htsget error taxonomy (spec §7) as a
// set of zeebo/errs classes, so any error raised by the core carries
// its kind through plain Go error wrapping.
package htserr

import (
	"errors"

	"github.com/zeebo/errs"
)

var (
	// InvalidInput: the request cannot be parsed or violates a Query
	// invariant. Never touches storage.
	InvalidInput = errs.Class("invalid input")

	// UnsupportedFormat: format is not one of BAM, CRAM, VCF, BCF.
	UnsupportedFormat = errs.Class("unsupported format")

	// NotFound: no resolver matched, or the object/index is absent.
	NotFound = errs.Class("not found")

	// PermissionDenied: the storage backend refused access.
	PermissionDenied = errs.Class("permission denied")

	// ServerError: malformed index, exhausted retries, or an internal
	// invariant violation. Never surfaced for a well-formed request.
	ServerError = errs.Class("server error")

	// Transient: a retryable storage error. storage.Retry retries it
	// and reports ServerError once attempts run out; storage calls made
	// outside Retry return it to their caller unchanged.
	Transient = errs.Class("transient storage error")
)

// Kind classifies err against the taxonomy above, defaulting to
// ServerError for anything unrecognized so that failure is never
// silently treated as success.
func Kind(err error) *errs.Class {
	switch {
	case InvalidInput.Has(err):
		return &InvalidInput
	case UnsupportedFormat.Has(err):
		return &UnsupportedFormat
	case NotFound.Has(err):
		return &NotFound
	case PermissionDenied.Has(err):
		return &PermissionDenied
	case Transient.Has(err):
		return &Transient
	default:
		return &ServerError
	}
}

// Is reports whether err (or something it wraps) belongs to class c.
func Is(err error, c errs.Class) bool {
	return c.Has(err)
}

// As is a thin re-export of errors.As for callers that already import
// htserr and would otherwise need a second import for unwrapping.
func As(err error, target any) bool {
	return errors.As(err, target)
}
