// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	path := writeConfig(t, "config.yaml", `
server:
  url: "https://agents.example.com/"

auth:
  credentials_file: "/tmp/creds.json"

timeouts:
  message: "300s"
  auxiliary: "15s"
  probe: "2s"

stream:
  max_retries: 5
  retry_delay: "250ms"
  retry_jitter: 0.2

session:
  working_dir: "/work"
  tools_approved: false

history:
  enabled: false

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://agents.example.com", cfg.Server.URL, "trailing slash is trimmed")
	assert.Equal(t, "/tmp/creds.json", cfg.Auth.CredentialsFile)
	assert.Equal(t, 300*time.Second, cfg.Timeouts.Message)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Auxiliary)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Probe)
	assert.Equal(t, 5, cfg.Stream.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.RetryDelay)
	assert.InDelta(t, 0.2, cfg.Stream.RetryJitter, 1e-9)
	assert.Equal(t, "/work", cfg.Session.WorkingDir)
	assert.False(t, cfg.Session.ToolsApproved)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ValidTOML(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	path := writeConfig(t, "config.toml", `
[server]
url = "http://10.0.0.5:8080"

[timeouts]
message = "45s"

[stream]
max_retries = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8080", cfg.Server.URL)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Message)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Auxiliary, "unset values keep defaults")
	assert.Equal(t, 2, cfg.Stream.MaxRetries)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	path := writeConfig(t, "config.yaml", `
server:
  url: "http://localhost:9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Timeouts, cfg.Timeouts)
	assert.Equal(t, def.Stream.MaxRetries, cfg.Stream.MaxRetries)
	assert.True(t, cfg.Session.ToolsApproved)
	assert.Equal(t, "/tmp", cfg.Session.WorkingDir)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv("TEST_AGENT_HOST", "agents.internal")
	t.Setenv("TEST_TS_KEY", "tskey-abc")

	path := writeConfig(t, "config.yaml", `
server:
  url: "https://${TEST_AGENT_HOST}"
tailscale:
  enabled: true
  auth_key: "${TEST_TS_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://agents.internal", cfg.Server.URL)
	assert.Equal(t, "tskey-abc", cfg.Tailscale.AuthKey)
	assert.Equal(t, "agentchat", cfg.Tailscale.Hostname)
}

func TestLoad_ServerURLEnvOverride(t *testing.T) {
	t.Setenv(EnvServerURL, "https://override.example.com/")

	path := writeConfig(t, "config.yaml", `
server:
  url: "http://localhost:9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Server.URL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
timeouts:
  message: "forever"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeouts.message")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv(EnvServerURL, "")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Message)
	assert.Equal(t, 3, cfg.Stream.MaxRetries)
}

func TestLoadOrDefault_InvalidFileIsAnError(t *testing.T) {
	path := writeConfig(t, "config.yaml", "stream:\n  max_retries: 0\n")

	_, err := LoadOrDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"empty url", func(c *Config) { c.Server.URL = "" }, "server.url is required"},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://x" }, "http or https"},
		{"no host", func(c *Config) { c.Server.URL = "http://" }, "must include a host"},
		{"no credentials file", func(c *Config) { c.Auth.CredentialsFile = "" }, "credentials_file"},
		{"zero message timeout", func(c *Config) { c.Timeouts.Message = 0 }, "timeouts.message"},
		{"zero retries", func(c *Config) { c.Stream.MaxRetries = 0 }, "max_retries"},
		{"jitter too large", func(c *Config) { c.Stream.RetryJitter = 1.5 }, "retry_jitter"},
		{"history without path", func(c *Config) { c.History.Path = "" }, "history.path"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"tailscale without hostname", func(c *Config) {
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = ""
		}, "tailscale.hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGENTCHAT_DOTENV_TEST=from-file\n"), 0600))

	t.Setenv("AGENTCHAT_DOTENV_TEST", "")
	os.Unsetenv("AGENTCHAT_DOTENV_TEST")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from-file", os.Getenv("AGENTCHAT_DOTENV_TEST"))

	// Missing files are ignored
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env")))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x", "y.json"), expandHome("~/x/y.json"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.False(t, strings.HasPrefix(expandHome("~/a"), "~"))
}
