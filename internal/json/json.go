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

// Package json is a pluggable JSON encoding layer so the httpapi
// ticket/error envelope encoder can be swapped for a faster
// implementation (e.g. github.com/bytedance/sonic) without touching
// call sites.
package json

import (
	stdjson "encoding/json"
	"io"
)

// Encoder streams JSON values to a writer.
type Encoder interface {
	Encode(v any) error
}

// Decoder streams JSON values from a reader.
type Decoder interface {
	Decode(v any) error
}

// Config holds the active encode/decode function set.
type Config struct {
	Marshal       func(v any) ([]byte, error)
	MarshalIndent func(v any, prefix, indent string) ([]byte, error)
	Unmarshal     func(data []byte, v any) error
	NewEncoder    func(w io.Writer) Encoder
	NewDecoder    func(r io.Reader) Decoder
}

// DefaultConfig wraps encoding/json.
func DefaultConfig() Config {
	return Config{
		Marshal:       stdjson.Marshal,
		MarshalIndent: stdjson.MarshalIndent,
		Unmarshal:     stdjson.Unmarshal,
		NewEncoder: func(w io.Writer) Encoder {
			return stdjson.NewEncoder(w)
		},
		NewDecoder: func(r io.Reader) Decoder {
			return stdjson.NewDecoder(r)
		},
	}
}

var config = DefaultConfig()

// SetConfig replaces the active encode/decode function set. Call
// before serving any requests.
func SetConfig(c Config) { config = c }

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) { return config.Marshal(v) }

// MarshalIndent is Marshal with indentation applied.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return config.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses JSON-encoded data into v.
func Unmarshal(data []byte, v any) error { return config.Unmarshal(data, v) }

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) Encoder { return config.NewEncoder(w) }

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) Decoder { return config.NewDecoder(r) }

// RawMessage delays JSON decoding of a value.
type RawMessage = stdjson.RawMessage
