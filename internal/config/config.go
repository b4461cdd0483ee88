package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full beacon-server configuration. Values resolve in three
// layers: package defaults, then the YAML file, then BEACON_* environment
// variables.
type Config struct {
	Listen    string `yaml:"listen"`
	LogLevel  string `yaml:"log_level"`
	LogPath   string `yaml:"log_path"`
	QueueSize int    `yaml:"queue_size"`

	Auth   Auth   `yaml:"auth"`
	Mail   Mail   `yaml:"mail"`
	Digest Digest `yaml:"digest"`
}

// Auth selects how API keys are verified. With no keys and no DSN the
// server runs open, which is the posture of a single-user local install.
type Auth struct {
	Keys        []StaticKey `yaml:"keys"`
	PostgresDSN string      `yaml:"postgres_dsn"`
	CacheTTLS   int         `yaml:"cache_ttl_s"`
}

// StaticKey is one provisioned API key. The clear key itself is never
// written down; beaconctl keygen prints the three fields to paste here.
type StaticKey struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	Hash   string `yaml:"hash"`
}

// Mail configures the digest transport. Mode "smtp" delivers for real,
// "log" writes messages to the server log, and an empty mode leaves
// digests unconfigured.
type Mail struct {
	Mode          string   `yaml:"mode"`
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Insecure      bool     `yaml:"insecure"`
	From          string   `yaml:"from"`
	To            []string `yaml:"to"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

// Digest tunes the scheduled dispatch loop. Interval 0 disables it;
// on-demand dispatches through the API keep working either way.
type Digest struct {
	IntervalMinutes int  `yaml:"interval_minutes"`
	ClearAfterSend  bool `yaml:"clear_after_send"`
	Preview         int  `yaml:"preview"`
}

// Default returns the configuration a bare server starts with.
func Default() Config {
	return Config{
		Listen:    ":8600",
		LogLevel:  "info",
		LogPath:   "events.json",
		QueueSize: 256,
		Auth: Auth{
			CacheTTLS: 30,
		},
		Mail: Mail{
			Port: 587,
		},
		Digest: Digest{
			Preview: 10,
		},
	}
}

// Load resolves the configuration. An empty path skips the file layer.
// Unknown YAML fields are rejected so a typo fails loudly instead of
// silently running with defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString("BEACON_LISTEN", &cfg.Listen)
	setString("BEACON_LOG_LEVEL", &cfg.LogLevel)
	setString("BEACON_LOG_PATH", &cfg.LogPath)
	setInt("BEACON_QUEUE_SIZE", &cfg.QueueSize)

	setString("BEACON_POSTGRES_DSN", &cfg.Auth.PostgresDSN)
	setInt("BEACON_AUTH_CACHE_TTL_S", &cfg.Auth.CacheTTLS)

	setString("BEACON_MAIL_MODE", &cfg.Mail.Mode)
	setString("BEACON_SMTP_HOST", &cfg.Mail.Host)
	setInt("BEACON_SMTP_PORT", &cfg.Mail.Port)
	setString("BEACON_SMTP_USERNAME", &cfg.Mail.Username)
	setString("BEACON_SMTP_PASSWORD", &cfg.Mail.Password)
	setString("BEACON_MAIL_FROM", &cfg.Mail.From)
	if v := os.Getenv("BEACON_MAIL_TO"); v != "" {
		cfg.Mail.To = splitList(v)
	}

	setInt("BEACON_DIGEST_INTERVAL_MIN", &cfg.Digest.IntervalMinutes)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen is required")
	}
	if c.LogPath == "" {
		return fmt.Errorf("config: log_path is required")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("config: queue_size must be at least 1, got %d", c.QueueSize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	switch c.Mail.Mode {
	case "":
	case "log":
		if c.Mail.From == "" || len(c.Mail.To) == 0 {
			return fmt.Errorf("config: mail.from and mail.to are required when mail.mode is set")
		}
	case "smtp":
		if c.Mail.From == "" || len(c.Mail.To) == 0 {
			return fmt.Errorf("config: mail.from and mail.to are required when mail.mode is set")
		}
		if c.Mail.Host == "" {
			return fmt.Errorf("config: mail.host is required when mail.mode is smtp")
		}
	default:
		return fmt.Errorf("config: unknown mail.mode %q", c.Mail.Mode)
	}

	if c.Digest.IntervalMinutes < 0 {
		return fmt.Errorf("config: digest.interval_minutes must not be negative")
	}
	if c.Digest.Preview < 0 {
		return fmt.Errorf("config: digest.preview must not be negative")
	}

	for i, k := range c.Auth.Keys {
		if k.Name == "" || k.Prefix == "" || k.Hash == "" {
			return fmt.Errorf("config: auth.keys[%d] needs name, prefix and hash", i)
		}
	}
	return nil
}
