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

// Package config loads and validates htsgetd.toml: the server,
// logging, service-info and resolver-chain configuration, with
// environment variable overrides layered on top via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/go-htsget/htsgetd/internal/logging"
)

// ServerConfig controls the htsget HTTP listener and request handling.
type ServerConfig struct {
	ListenAddress  string `toml:"listen_address" mapstructure:"listen_address"`
	HealthAddress  string `toml:"health_address" mapstructure:"health_address"`
	ReadTimeout    string `toml:"read_timeout" mapstructure:"read_timeout"`
	StorageTimeout string `toml:"storage_timeout" mapstructure:"storage_timeout"`
	RetryAttempts  int    `toml:"retry_attempts" mapstructure:"retry_attempts"`
}

// LoggingConfig selects the process logger's style and verbosity.
type LoggingConfig struct {
	Style string `toml:"style" mapstructure:"style"`
	Level string `toml:"level" mapstructure:"level"`
}

// ServiceInfoConfig populates the htsget service-info documents.
type ServiceInfoConfig struct {
	ID               string `toml:"id" mapstructure:"id"`
	Name             string `toml:"name" mapstructure:"name"`
	Version          string `toml:"version" mapstructure:"version"`
	OrganizationName string `toml:"organization_name" mapstructure:"organization_name"`
	OrganizationURL  string `toml:"organization_url" mapstructure:"organization_url"`
	ContactURL       string `toml:"contact_url" mapstructure:"contact_url"`
	DocumentationURL string `toml:"documentation_url" mapstructure:"documentation_url"`
	CreatedAt        string `toml:"created_at" mapstructure:"created_at"`
	UpdatedAt        string `toml:"updated_at" mapstructure:"updated_at"`
	Environment      string `toml:"environment" mapstructure:"environment"`
}

// StorageConfig describes one resolver entry's backend. Kind selects
// which of LocalPath/Bucket applies; the other backend's fields are
// ignored.
type StorageConfig struct {
	Kind       string `toml:"kind" mapstructure:"kind"`
	LocalPath  string `toml:"local_path" mapstructure:"local_path"`
	Scheme     string `toml:"scheme" mapstructure:"scheme"`
	Authority  string `toml:"authority" mapstructure:"authority"`
	PathPrefix string `toml:"path_prefix" mapstructure:"path_prefix"`
	Bucket     string `toml:"bucket" mapstructure:"bucket"`
	Endpoint   string `toml:"endpoint" mapstructure:"endpoint"`
	KeyPrefix  string `toml:"key_prefix" mapstructure:"key_prefix"`
	Region     string `toml:"region" mapstructure:"region"`
	UseSSL     bool   `toml:"use_ssl" mapstructure:"use_ssl"`
}

// GuardConfig is the declarative form of a resolver entry's guard. Each
// allow-list defaults to "accept all" when left empty, per spec §6.
type GuardConfig struct {
	AllowReferenceNames []string `toml:"allow_reference_names" mapstructure:"allow_reference_names"`
	AllowFields         []string `toml:"allow_fields" mapstructure:"allow_fields"`
	AllowTags           []string `toml:"allow_tags" mapstructure:"allow_tags"`
	AllowFormats        []string `toml:"allow_formats" mapstructure:"allow_formats"`
	AllowClasses        []string `toml:"allow_classes" mapstructure:"allow_classes"`
	AllowIntervalStart  *int64   `toml:"allow_interval_start" mapstructure:"allow_interval_start"`
	AllowIntervalEnd    *int64   `toml:"allow_interval_end" mapstructure:"allow_interval_end"`
}

// ResolverEntryConfig is one [[resolvers]] table.
type ResolverEntryConfig struct {
	Regex        string        `toml:"regex" mapstructure:"regex"`
	Substitution string        `toml:"substitution" mapstructure:"substitution"`
	Storage      StorageConfig `toml:"storage" mapstructure:"storage"`
	Guard        GuardConfig   `toml:"guard" mapstructure:"guard"`
}

// Config is the fully parsed htsgetd.toml document.
type Config struct {
	Server      ServerConfig          `toml:"server" mapstructure:"server"`
	Logging     LoggingConfig         `toml:"logging" mapstructure:"logging"`
	ServiceInfo ServiceInfoConfig     `toml:"service_info" mapstructure:"service_info"`
	Resolvers   []ResolverEntryConfig `toml:"resolvers" mapstructure:"resolvers"`
}

// defaults returns a Config pre-populated with the values spec §6
// documents as the default htsgetd.toml.
func defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddress:  ":3000",
			HealthAddress:  ":3001",
			ReadTimeout:    "30s",
			StorageTimeout: "10s",
			RetryAttempts:  3,
		},
		Logging: LoggingConfig{
			Style: string(logging.StyleJSON),
			Level: "info",
		},
	}
}

// Load reads path as TOML, layers environment-variable overrides under
// the HTSGETD_ prefix (e.g. HTSGETD_SERVER_LISTEN_ADDRESS), and
// validates the result with Validate. Regex compilation and
// substitution references are not checked here; BuildResolverChain
// reports those errors when it builds the resolver chain.
func Load(path string) (Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	v := viper.New()
	v.SetEnvPrefix("HTSGETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyServerOverrides(v, &cfg.Server)
	applyLoggingOverrides(v, &cfg.Logging)
	applyServiceInfoOverrides(v, &cfg.ServiceInfo)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyServerOverrides(v *viper.Viper, s *ServerConfig) {
	if val := v.GetString("server.listen_address"); val != "" {
		s.ListenAddress = val
	}
	if val := v.GetString("server.health_address"); val != "" {
		s.HealthAddress = val
	}
	if val := v.GetString("server.read_timeout"); val != "" {
		s.ReadTimeout = val
	}
	if val := v.GetString("server.storage_timeout"); val != "" {
		s.StorageTimeout = val
	}
	if v.IsSet("server.retry_attempts") {
		s.RetryAttempts = v.GetInt("server.retry_attempts")
	}
}

func applyLoggingOverrides(v *viper.Viper, l *LoggingConfig) {
	if val := v.GetString("logging.style"); val != "" {
		l.Style = val
	}
	if val := v.GetString("logging.level"); val != "" {
		l.Level = val
	}
}

func applyServiceInfoOverrides(v *viper.Viper, s *ServiceInfoConfig) {
	if val := v.GetString("service_info.id"); val != "" {
		s.ID = val
	}
	if val := v.GetString("service_info.name"); val != "" {
		s.Name = val
	}
	if val := v.GetString("service_info.version"); val != "" {
		s.Version = val
	}
	if val := v.GetString("service_info.organization_name"); val != "" {
		s.OrganizationName = val
	}
	if val := v.GetString("service_info.organization_url"); val != "" {
		s.OrganizationURL = val
	}
	if val := v.GetString("service_info.contact_url"); val != "" {
		s.ContactURL = val
	}
	if val := v.GetString("service_info.documentation_url"); val != "" {
		s.DocumentationURL = val
	}
	if val := v.GetString("service_info.created_at"); val != "" {
		s.CreatedAt = val
	}
	if val := v.GetString("service_info.updated_at"); val != "" {
		s.UpdatedAt = val
	}
	if val := v.GetString("service_info.environment"); val != "" {
		s.Environment = val
	}
}

// ReadTimeoutDuration parses Server.ReadTimeout.
func (s ServerConfig) ReadTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(s.ReadTimeout)
}

// StorageTimeoutDuration parses Server.StorageTimeout.
func (s ServerConfig) StorageTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(s.StorageTimeout)
}

// Validate checks structural invariants Load cannot catch by decoding
// alone: at least one resolver, parseable timeouts, retry_attempts of
// at least 1, a logging style this build supports, and for every
// resolver a non-empty regex and a recognized storage kind. It does
// not compile regexes or check substitution references.
func Validate(cfg Config) error {
	if len(cfg.Resolvers) == 0 {
		return fmt.Errorf("config must declare at least one [[resolvers]] entry")
	}
	if _, err := cfg.Server.ReadTimeoutDuration(); err != nil {
		return fmt.Errorf("server.read_timeout: %w", err)
	}
	if _, err := cfg.Server.StorageTimeoutDuration(); err != nil {
		return fmt.Errorf("server.storage_timeout: %w", err)
	}
	if cfg.Server.RetryAttempts < 1 {
		return fmt.Errorf("server.retry_attempts must be at least 1")
	}
	switch logging.Style(cfg.Logging.Style) {
	case logging.StyleTerminal, logging.StyleJSON, logging.StyleNoop:
	default:
		return fmt.Errorf("logging.style %q is not supported; use terminal, json, or noop", cfg.Logging.Style)
	}
	for i, r := range cfg.Resolvers {
		if r.Regex == "" {
			return fmt.Errorf("resolvers[%d]: regex must not be empty", i)
		}
		switch r.Storage.Kind {
		case "local":
			if r.Storage.LocalPath == "" {
				return fmt.Errorf("resolvers[%d]: storage.kind local requires local_path", i)
			}
		case "s3":
			if r.Storage.Bucket == "" {
				return fmt.Errorf("resolvers[%d]: storage.kind s3 requires bucket", i)
			}
		default:
			return fmt.Errorf("resolvers[%d]: storage.kind %q must be local or s3", i, r.Storage.Kind)
		}
	}
	return nil
}
