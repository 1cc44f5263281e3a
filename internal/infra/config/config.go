package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds the remote agent endpoint settings.
type BackendConfig struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:8000/agent/ws".
	URL string `yaml:"url"`
	// ReconnectMaxAttempts bounds automatic reconnection. After the cap the
	// client gives up silently and waits for an explicit connect.
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`
	// ReconnectBaseDelay is multiplied by the attempt number (linear backoff).
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	// SendTimeout bounds a single outbound write.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// AuthConfig holds the OTP auth provider settings.
type AuthConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// QuotaConfig holds the daily usage limit.
type QuotaConfig struct {
	DailyLimit int `yaml:"daily_limit"`
}

// ShellConfig holds terminal capability settings.
type ShellConfig struct {
	Shell          string        `yaml:"shell"` // empty = platform default
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// ActionsConfig paces automation side effects.
type ActionsConfig struct {
	// MaxPerSecond caps pointer/keyboard actions. Zero disables pacing.
	MaxPerSecond float64 `yaml:"max_per_second"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	// Path of the sqlite database file.
	Path string `yaml:"path"`
	// PassphraseEnv names the environment variable carrying the passphrase
	// used to encrypt persisted tokens. Empty = store tokens in plain text.
	PassphraseEnv string `yaml:"passphrase_env"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Config is the top-level application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Auth    AuthConfig    `yaml:"auth"`
	Quota   QuotaConfig   `yaml:"quota"`
	Shell   ShellConfig   `yaml:"shell"`
	Actions ActionsConfig `yaml:"actions"`
	Storage StorageConfig `yaml:"storage"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// Default returns the configuration applied when no file is present.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			URL:                  "ws://127.0.0.1:8000/agent/ws",
			ReconnectMaxAttempts: 5,
			ReconnectBaseDelay:   time.Second,
			SendTimeout:          5 * time.Second,
		},
		Auth: AuthConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 15 * time.Second,
		},
		Quota: QuotaConfig{DailyLimit: 10},
		Shell: ShellConfig{CommandTimeout: 2 * time.Second},
		Actions: ActionsConfig{MaxPerSecond: 4},
		Storage: StorageConfig{
			Path:          defaultStoragePath(),
			PassphraseEnv: "DESKMATE_PASSPHRASE",
		},
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "deskmate.db"
	}
	return filepath.Join(home, ".deskmate", "deskmate.db")
}

// envPattern matches ${VAR} references in config values.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the YAML config at path, applies ${ENV} expansion, and merges
// it over defaults. A missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url must not be empty")
	}
	if c.Backend.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("backend.reconnect_max_attempts must not be negative")
	}
	if c.Backend.ReconnectBaseDelay < 0 {
		return fmt.Errorf("backend.reconnect_base_delay must not be negative")
	}
	if c.Quota.DailyLimit <= 0 {
		return fmt.Errorf("quota.daily_limit must be positive")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	switch c.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format must be text or json, got %q", c.Logger.Format)
	}
	return nil
}
