package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[server]
listen_address = ":3000"
health_address = ":3001"
read_timeout = "30s"
storage_timeout = "10s"
retry_attempts = 3

[logging]
style = "json"
level = "info"

[service_info]
id = "org.example.htsget"
name = "Example htsget service"
version = "1.0.0"
organization_name = "Example Org"
organization_url = "https://example.org"
contact_url = "mailto:support@example.org"
documentation_url = "https://example.org/docs"
environment = "production"

[[resolvers]]
regex = '^open/(?P<accession>.*)$'
substitution = "$accession"
  [resolvers.storage]
  kind = "local"
  local_path = "/data/open"
  scheme = "http"
  authority = "data.example.org"
  path_prefix = "/data"
  [resolvers.guard]
  allow_formats = ["BAM", "CRAM"]

[[resolvers]]
regex = '^(?P<key>.*)$'
substitution = "$key"
  [resolvers.storage]
  kind = "s3"
  bucket = "genomics-bucket"
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "htsgetd.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSampleConfig(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":3000", cfg.Server.ListenAddress)
	require.Equal(t, 3, cfg.Server.RetryAttempts)
	require.Equal(t, "json", cfg.Logging.Style)
	require.Len(t, cfg.Resolvers, 2)
	require.Equal(t, "local", cfg.Resolvers[0].Storage.Kind)
	require.Equal(t, "s3", cfg.Resolvers[1].Storage.Kind)
	require.Equal(t, []string{"BAM", "CRAM"}, cfg.Resolvers[0].Guard.AllowFormats)
	require.Equal(t, "Example Org", cfg.ServiceInfo.OrganizationName)
	require.Equal(t, "production", cfg.ServiceInfo.Environment)
}

func TestLoadRejectsMissingResolvers(t *testing.T) {
	path := writeTempConfig(t, `
[server]
listen_address = ":3000"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnrecognizedStorageKind(t *testing.T) {
	path := writeTempConfig(t, `
[[resolvers]]
regex = '^(?P<key>.*)$'
substitution = "$key"
  [resolvers.storage]
  kind = "ftp"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnsupportedLoggingStyle(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
style = "logfmt"

[[resolvers]]
regex = '^(?P<key>.*)$'
substitution = "$key"
  [resolvers.storage]
  kind = "s3"
  bucket = "genomics-bucket"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvironmentOverridesListenAddress(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	t.Setenv("HTSGETD_SERVER_LISTEN_ADDRESS", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Server.ListenAddress)
}

func TestBuildResolverChainFromSampleConfig(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	cfg, err := Load(path)
	require.NoError(t, err)

	chain, mounts, err := BuildResolverChain(cfg)
	require.NoError(t, err)
	require.NotNil(t, chain)
	require.Len(t, mounts, 1)
	require.Equal(t, "/data", mounts[0].PathPrefix)
}
