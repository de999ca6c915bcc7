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

	"github.com/go-htsget/htsgetd/internal/json"
)

// Organization is the service-info "organization" sub-object.
type Organization struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// HTSGetCapabilities is the service-info "htsget" sub-object
// describing what this deployment actually serves.
type HTSGetCapabilities struct {
	Datatype                  string   `json:"datatype"`
	Formats                   []string `json:"formats"`
	FieldsParametersEffective bool     `json:"fieldsParametersEffective"`
	TagsParametersEffective   bool     `json:"tagsParametersEffective"`
}

// ServiceInfo is the static descriptor served at .../service-info, per
// spec §6.
type ServiceInfo struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Version           string             `json:"version"`
	Organization      Organization       `json:"organization"`
	ContactURL        string             `json:"contactUrl"`
	DocumentationURL  string             `json:"documentationUrl"`
	CreatedAt         string             `json:"createdAt"`
	UpdatedAt         string             `json:"updatedAt"`
	Environment       string             `json:"environment"`
	HTSGet            HTSGetCapabilities `json:"htsget"`
}

// ServiceInfoConfig is the subset of configuration the mapper needs to
// build both the reads and variants descriptors.
type ServiceInfoConfig struct {
	ID               string
	Name             string
	Version          string
	OrganizationName string
	OrganizationURL  string
	ContactURL       string
	DocumentationURL string
	CreatedAt        string
	UpdatedAt        string
	Environment      string
}

func readsServiceInfo(cfg ServiceInfoConfig) ServiceInfo {
	return buildServiceInfo(cfg, "reads", []string{"BAM", "CRAM"})
}

func variantsServiceInfo(cfg ServiceInfoConfig) ServiceInfo {
	return buildServiceInfo(cfg, "variants", []string{"VCF", "BCF"})
}

func buildServiceInfo(cfg ServiceInfoConfig, datatype string, formats []string) ServiceInfo {
	return ServiceInfo{
		ID:               cfg.ID,
		Name:             cfg.Name,
		Version:          cfg.Version,
		Organization:     Organization{Name: cfg.OrganizationName, URL: cfg.OrganizationURL},
		ContactURL:       cfg.ContactURL,
		DocumentationURL: cfg.DocumentationURL,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
		Environment:      cfg.Environment,
		HTSGet: HTSGetCapabilities{
			Datatype:                  datatype,
			Formats:                   formats,
			FieldsParametersEffective: false,
			TagsParametersEffective:   false,
		},
	}
}

func writeServiceInfo(w http.ResponseWriter, info ServiceInfo) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(info)
}
