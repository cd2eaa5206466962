// Package config loads and validates the tallysync YAML configuration.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// RemoteURL is the base URL of the remote store (e.g. "https://tally.example.com").
	RemoteURL string `yaml:"remote_url"`

	// APIKey is the project-level key sent with every request alongside the
	// account's bearer token.
	APIKey string `yaml:"api_key"`

	// AccountID is the authenticated account's user ID. The bearer token
	// itself is resolved at runtime via the token command or environment.
	AccountID string `yaml:"account_id"`

	// Phone is the account's verified phone number in E.164 form. Its hash
	// is what share claiming matches against.
	Phone string `yaml:"phone"`

	// TokenCommand, when set, is executed to obtain the current bearer
	// token (stdout, trailing newline trimmed). Falls back to the
	// TALLYSYNC_TOKEN environment variable when empty.
	TokenCommand string `yaml:"token_command,omitempty"`

	// DBPath overrides the local database location. Defaults to
	// ~/.local/share/tallysync/tally.db.
	DBPath string `yaml:"db_path,omitempty"`

	// Debounce is the quiet period collapsing bursts of changes into one
	// sync cycle. Minimum 100ms, maximum 10s. Defaults to 500ms if unset.
	Debounce time.Duration `yaml:"debounce"`

	// PollInterval is the safety-net interval between forced sync cycles.
	// Minimum 30s, maximum 1h. Defaults to 5m if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Realtime enables the websocket change-notification feed. Defaults to
	// true; the poll interval covers it when disabled.
	Realtime *bool `yaml:"realtime,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "tallysync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// RealtimeEnabled reports whether the websocket feed should run.
func (c *Config) RealtimeEnabled() bool {
	return c.Realtime == nil || *c.Realtime
}

// DefaultPath returns the default config file path: ~/.config/tallysync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tallysync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Write marshals the configuration to path, creating parent directories as
// needed. The file is created mode 0600: it names the API key.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// TokenSource returns a function resolving the account's current bearer
// token. When token_command is set it is run through the shell and its
// trimmed stdout is the token; otherwise the TALLYSYNC_TOKEN environment
// variable is read. The function is called per request so rotated tokens are
// picked up without restarting.
func (c *Config) TokenSource() func(context.Context) (string, error) {
	cmdline := c.TokenCommand
	return func(ctx context.Context) (string, error) {
		if cmdline == "" {
			tok := os.Getenv("TALLYSYNC_TOKEN")
			if tok == "" {
				return "", fmt.Errorf("no bearer token: set token_command in the config or the TALLYSYNC_TOKEN environment variable")
			}
			return tok, nil
		}
		out, err := exec.CommandContext(ctx, "sh", "-c", cmdline).Output()
		if err != nil {
			return "", fmt.Errorf("running token_command: %w", err)
		}
		tok := strings.TrimSpace(string(out))
		if tok == "" {
			return "", fmt.Errorf("token_command produced no output")
		}
		return tok, nil
	}
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.RemoteURL == "" {
		return fmt.Errorf("remote_url is required")
	}
	u, err := url.ParseRequestURI(c.RemoteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("remote_url %q must be a valid http or https URL", c.RemoteURL)
	}

	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}

	if c.Debounce == 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.Debounce < 100*time.Millisecond {
		return fmt.Errorf("debounce %v is too short (minimum 100ms)", c.Debounce)
	}
	if c.Debounce > 10*time.Second {
		return fmt.Errorf("debounce %v is too long (maximum 10s)", c.Debounce)
	}

	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Minute
	}
	if c.PollInterval < 30*time.Second {
		return fmt.Errorf("poll_interval %v is too short (minimum 30s)", c.PollInterval)
	}
	if c.PollInterval > time.Hour {
		return fmt.Errorf("poll_interval %v is too long (maximum 1h)", c.PollInterval)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
