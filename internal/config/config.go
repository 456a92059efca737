// ABOUTME: Configuration loading and parsing for the agentchat client
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultServerURL is used when neither the config file, AGENTCHAT_URL, nor
// a flag names a server.
const DefaultServerURL = "http://localhost:8080"

// EnvServerURL overrides server.url when set.
const EnvServerURL = "AGENTCHAT_URL"

// Config represents the complete agentchat configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts" toml:"timeouts"`
	Stream    StreamConfig    `yaml:"stream" toml:"stream"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
}

// ServerConfig names the remote agent server
type ServerConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// AuthConfig holds credential persistence settings
type AuthConfig struct {
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
	Skip            bool   `yaml:"skip" toml:"skip"`
}

// TimeoutsConfig holds per-request timeouts.
// Message bounds only the time until response headers of a message send arrive.
type TimeoutsConfig struct {
	Message   time.Duration `yaml:"-" toml:"-"`
	Auxiliary time.Duration `yaml:"-" toml:"-"`
	Probe     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	MessageRaw   string `yaml:"message" toml:"message"`
	AuxiliaryRaw string `yaml:"auxiliary" toml:"auxiliary"`
	ProbeRaw     string `yaml:"probe" toml:"probe"`
}

// StreamConfig holds the retry policy for message sends
type StreamConfig struct {
	MaxRetries  int           `yaml:"max_retries" toml:"max_retries"`
	RetryDelay  time.Duration `yaml:"-" toml:"-"`
	RetryJitter float64       `yaml:"retry_jitter" toml:"retry_jitter"`

	RetryDelayRaw string `yaml:"retry_delay" toml:"retry_delay"`
}

// SessionConfig holds defaults for newly created sessions
type SessionConfig struct {
	WorkingDir    string `yaml:"working_dir" toml:"working_dir"`
	ToolsApproved bool   `yaml:"tools_approved" toml:"tools_approved"`
}

// HistoryConfig holds the local transcript database settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TailscaleConfig holds settings for reaching the server through an embedded tsnet node
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Server: ServerConfig{URL: DefaultServerURL},
		Auth: AuthConfig{
			CredentialsFile: defaultCredentialsPath(),
		},
		Timeouts: TimeoutsConfig{
			Message:   120 * time.Second,
			Auxiliary: 10 * time.Second,
			Probe:     5 * time.Second,
		},
		Stream: StreamConfig{
			MaxRetries: 3,
		},
		Session: SessionConfig{
			WorkingDir:    "/tmp",
			ToolsApproved: true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tailscale: TailscaleConfig{
			Hostname:  "agentchat",
			Ephemeral: true,
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Values absent from the file keep their defaults.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults (with environment
// overrides applied) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	cfg := Default()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into
// the process environment. Variables already set are not overwritten and a
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Server.URL = v
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
	c.Auth.CredentialsFile = expandHome(c.Auth.CredentialsFile)
	c.History.Path = expandHome(c.History.Path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url must include a host")
	}

	if c.Auth.CredentialsFile == "" {
		return fmt.Errorf("auth.credentials_file is required")
	}

	if c.Timeouts.Message <= 0 {
		return fmt.Errorf("timeouts.message must be positive")
	}
	if c.Timeouts.Auxiliary <= 0 {
		return fmt.Errorf("timeouts.auxiliary must be positive")
	}
	if c.Timeouts.Probe <= 0 {
		return fmt.Errorf("timeouts.probe must be positive")
	}

	if c.Stream.MaxRetries < 1 {
		return fmt.Errorf("stream.max_retries must be at least 1")
	}
	if c.Stream.RetryDelay < 0 {
		return fmt.Errorf("stream.retry_delay must not be negative")
	}
	if c.Stream.RetryJitter < 0 || c.Stream.RetryJitter > 1 {
		return fmt.Errorf("stream.retry_jitter must be between 0 and 1")
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timeouts.message", cfg.Timeouts.MessageRaw, &cfg.Timeouts.Message},
		{"timeouts.auxiliary", cfg.Timeouts.AuxiliaryRaw, &cfg.Timeouts.Auxiliary},
		{"timeouts.probe", cfg.Timeouts.ProbeRaw, &cfg.Timeouts.Probe},
		{"stream.retry_delay", cfg.Stream.RetryDelayRaw, &cfg.Stream.RetryDelay},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// DefaultConfigPath returns the path to the client config file.
// Priority: AGENTCHAT_CONFIG env var > XDG_CONFIG_HOME/agentchat/config.yaml > ~/.config/agentchat/config.yaml
func DefaultConfigPath() string {
	if envPath := os.Getenv("AGENTCHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "agentchat", "config.yaml")
}

// defaultCredentialsPath keeps the credential document where earlier clients stored it.
func defaultCredentialsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cagent_auth.json"
	}
	return filepath.Join(homeDir, ".cagent_auth.json")
}

// defaultHistoryPath returns XDG_DATA_HOME/agentchat/history.db or ~/.local/share/agentchat/history.db
func defaultHistoryPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "history.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "agentchat", "history.db")
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, p[2:])
}
