package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProxyYAML(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proxy.yaml"), []byte(content), 0o600))
}

func TestInitialize_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	writeProxyYAML(t, dir, `
credentials_dir: /etc/proxy/credentials
dashboard_api_key: secret
database_url: postgres://proxy@localhost:5432/proxy
upstream:
  base_url: https://api.upstream.example
analysis:
  ai_model_name: analysis-model
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ConfigDir())
	assert.True(t, cfg.EnableClientAuth)
	assert.True(t, cfg.StorageEnabled)
	assert.Equal(t, "x-api-key", cfg.Upstream.APIKeyHeader)
	assert.Equal(t, 10*60*1e9, float64(cfg.Proxy.UpstreamTimeout))
	assert.Greater(t, cfg.Proxy.ServerTimeout, cfg.Proxy.UpstreamTimeout)
	assert.Equal(t, 100, cfg.Pipeline.BatchSize)
}

func TestInitialize_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROXY_DASHBOARD_KEY", "from-env")
	writeProxyYAML(t, dir, `
credentials_dir: /etc/proxy/credentials
dashboard_api_key: ${PROXY_DASHBOARD_KEY}
database_url: postgres://proxy@localhost:5432/proxy
upstream:
  base_url: https://api.upstream.example
analysis:
  ai_model_name: analysis-model
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DashboardAPIKey)
}

func TestInitialize_MissingRequiredFieldsFail(t *testing.T) {
	dir := t.TempDir()
	writeProxyYAML(t, dir, `storage_enabled: true`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestInitialize_ServerTimeoutMustExceedUpstream(t *testing.T) {
	dir := t.TempDir()
	writeProxyYAML(t, dir, `
credentials_dir: /etc/proxy/credentials
dashboard_api_key: secret
upstream:
  base_url: https://api.upstream.example
proxy:
  claude_api_timeout_ms: 600000
  proxy_server_timeout_ms: 600000
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy_server_timeout_ms")
}
