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

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/go-htsget/htsgetd/internal/engine"
	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/resolver"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// Handler wires the resolver chain and format engines behind the
// htsget HTTP surface.
type Handler struct {
	Resolver    *resolver.Chain
	Logger      *zap.Logger
	ServiceInfo ServiceInfoConfig
}

// NewRouter builds the full mux.Router for the htsget HTTP surface
// (spec §6): GET/POST /reads/{id} and /variants/{id}, plus the two
// service-info endpoints.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/reads/service-info", h.serveServiceInfo(endpointReads)).Methods(http.MethodGet)
	r.HandleFunc("/variants/service-info", h.serveServiceInfo(endpointVariants)).Methods(http.MethodGet)
	r.HandleFunc("/reads/{id}", h.serveTicket(endpointReads)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/variants/{id}", h.serveTicket(endpointVariants)).Methods(http.MethodGet, http.MethodPost)
	return r
}

func (h *Handler) serveServiceInfo(kind endpointKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if kind == endpointVariants {
			writeServiceInfo(w, variantsServiceInfo(h.ServiceInfo))
			return
		}
		writeServiceInfo(w, readsServiceInfo(h.ServiceInfo))
	}
}

func (h *Handler) serveTicket(kind endpointKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		queries, err := bindQuery(r, id, kind)
		if err != nil {
			h.logFailure(r, err)
			writeError(w, err)
			return
		}

		resp, err := h.resolveAndSearch(r, queries)
		if err != nil {
			h.logFailure(r, err)
			writeError(w, err)
			return
		}
		writeSuccess(w, resp)
	}
}

// resolveAndSearch resolves and dispatches every query, combining the
// results of a multi-region POST into a single Response (spec §6:
// "regions may be a list").
func (h *Handler) resolveAndSearch(r *http.Request, queries []htsget.Query) (htsget.Response, error) {
	responses := make([]htsget.Response, 0, len(queries))
	for _, q := range queries {
		resolved, err := h.Resolver.Resolve(q.ID, q)
		if err != nil {
			return htsget.Response{}, err
		}
		backend, ok := resolved.Storage.(storage.Backend)
		if !ok {
			return htsget.Response{}, htserr.ServerError.New("resolved storage handle for %q does not satisfy the storage contract", q.ID)
		}
		searcher, err := engine.For(q.Format)
		if err != nil {
			return htsget.Response{}, htserr.UnsupportedFormat.Wrap(err)
		}
		resp, err := searcher(r.Context(), backend, resolved.Key, q)
		if err != nil {
			return htsget.Response{}, err
		}
		responses = append(responses, resp)
	}
	if len(responses) == 1 {
		return responses[0], nil
	}
	return combineRegionResponses(responses), nil
}

// combineRegionResponses concatenates several per-region Responses
// into one ticket: the header range is kept only from the first
// region, the EOF range only from the last, and every body range from
// every region is kept in request order.
func combineRegionResponses(responses []htsget.Response) htsget.Response {
	var urls []htsget.Url
	var eofURL *htsget.Url
	headerTaken := false

	for _, resp := range responses {
		for _, u := range resp.Urls {
			switch u.Purpose {
			case htsget.PurposeHeader:
				if !headerTaken {
					urls = append(urls, u)
					headerTaken = true
				}
			case htsget.PurposeEOF:
				url := u
				eofURL = &url
			default:
				urls = append(urls, u)
			}
		}
	}
	if eofURL != nil {
		urls = append(urls, *eofURL)
	}
	return htsget.Response{Format: responses[0].Format, Urls: urls}
}

func (h *Handler) logFailure(r *http.Request, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn("htsget request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
