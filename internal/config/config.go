// ABOUTME: Configuration loading and parsing for wagateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wagateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// WebhookConfig holds the external message-processing endpoint configuration.
// An empty URL disables relaying entirely; inbound messages are still
// classified and logged but never forwarded.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"` // enables HMAC request signing when set

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// WhatsAppConfig holds underlying-client configuration
type WhatsAppConfig struct {
	// StoreDir is where per-session credential databases live
	StoreDir string `yaml:"store_dir"`

	// QRTerminal additionally renders pairing challenges to stdout
	QRTerminal bool `yaml:"qr_terminal"`

	// SendRate / SendBurst bound outbound message throughput per session
	SendRate  float64 `yaml:"send_rate"`
	SendBurst int     `yaml:"send_burst"`
}

// SessionsConfig holds session lifecycle tuning
type SessionsConfig struct {
	DestroyTimeout time.Duration `yaml:"-"`
	DedupeWindow   time.Duration `yaml:"-"`
	DedupeMaxSize  int           `yaml:"dedupe_max_size"`

	// Raw string values for YAML unmarshaling
	DestroyTimeoutRaw string `yaml:"destroy_timeout"`
	DedupeWindowRaw   string `yaml:"dedupe_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: ":3000"},
		WhatsApp: WhatsAppConfig{
			StoreDir:  "./data/sessions",
			SendRate:  1,
			SendBurst: 5,
		},
		Sessions: SessionsConfig{
			DestroyTimeout: 10 * time.Second,
			DedupeWindow:   5 * time.Minute,
			DedupeMaxSize:  10000,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values. Fields left empty
// fall back to the Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies the environment variables the original
// deployment contract expects: PORT overrides the listen address and
// WEBHOOK_URL overrides the relay endpoint.
func (c *Config) ApplyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.HTTPAddr = ":" + port
	}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		c.Webhook.URL = url
	}
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
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.WhatsApp.StoreDir == "" {
		return fmt.Errorf("whatsapp.store_dir is required")
	}

	if c.WhatsApp.SendRate <= 0 {
		return fmt.Errorf("whatsapp.send_rate must be positive")
	}

	if c.Sessions.DedupeMaxSize <= 0 {
		return fmt.Errorf("sessions.dedupe_max_size must be positive")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Webhook.TimeoutRaw != "" {
		cfg.Webhook.Timeout, err = time.ParseDuration(cfg.Webhook.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing webhook.timeout %q: %w", cfg.Webhook.TimeoutRaw, err)
		}
	}

	if cfg.Sessions.DestroyTimeoutRaw != "" {
		cfg.Sessions.DestroyTimeout, err = time.ParseDuration(cfg.Sessions.DestroyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.destroy_timeout %q: %w", cfg.Sessions.DestroyTimeoutRaw, err)
		}
	}

	if cfg.Sessions.DedupeWindowRaw != "" {
		cfg.Sessions.DedupeWindow, err = time.ParseDuration(cfg.Sessions.DedupeWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.dedupe_window %q: %w", cfg.Sessions.DedupeWindowRaw, err)
		}
	}

	return nil
}
