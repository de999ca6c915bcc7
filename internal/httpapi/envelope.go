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

package httpapi

import (
	"net/http"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/json"
)

// successEnvelope is the top-level htsget success response.
type successEnvelope struct {
	HTSGet htsget.Response `json:"htsget"`
}

// errorBody is the "htsget" object of an error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	HTSGet errorBody `json:"htsget"`
}

// writeSuccess encodes resp as the htsget success envelope.
func writeSuccess(w http.ResponseWriter, resp htsget.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(successEnvelope{HTSGet: resp})
}

// errorKind is the htsget protocol's string error identifier, distinct
// from the internal htserr.Class it's derived from (spec §7 table).
type errorKind string

const (
	errInvalidInput          errorKind = "InvalidInput"
	errUnsupportedFormat     errorKind = "UnsupportedFormat"
	errInvalidRange          errorKind = "InvalidRange"
	errInvalidAuthentication errorKind = "InvalidAuthentication"
	errPermissionDenied      errorKind = "PermissionDenied"
	errNotFound              errorKind = "NotFound"
	errServerError           errorKind = "ServerError"
)

// writeError classifies err against the htserr taxonomy and encodes
// the matching htsget error envelope with the corresponding HTTP
// status, per spec §7.
func writeError(w http.ResponseWriter, err error) {
	kind, status, msg := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{HTSGet: errorBody{
		Error:   string(kind),
		Message: msg,
	}})
}

func classify(err error) (errorKind, int, string) {
	class := htserr.Kind(err)
	msg := err.Error()
	switch *class {
	case htserr.InvalidInput:
		return errInvalidInput, http.StatusBadRequest, msg
	case htserr.UnsupportedFormat:
		return errUnsupportedFormat, http.StatusBadRequest, msg
	case htserr.NotFound:
		return errNotFound, http.StatusNotFound, msg
	case htserr.PermissionDenied:
		return errPermissionDenied, http.StatusForbidden, msg
	default:
		// ServerError and any unrecognized class: never echo raw index
		// bytes or internal paths (spec §7); the wrapped message from
		// htserr is already a summary, not raw storage content.
		return errServerError, http.StatusInternalServerError, "internal server error"
	}
}
