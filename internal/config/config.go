package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/vidgrab/vidgrab/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Download  DownloadConfig            `yaml:"download"`
	History   HistoryConfig             `yaml:"history"`
	Platforms map[string]PlatformConfig `yaml:"platforms"`
}

// ServerConfig holds configuration for the local HTTP API server.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8097"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// DownloadConfig holds session and transfer configuration.
type DownloadConfig struct {
	PreviewTimeout      time.Duration `yaml:"preview_timeout" envconfig:"PREVIEW_TIMEOUT" default:"15s"`
	ProbeMedia          bool          `yaml:"probe_media" envconfig:"PROBE_MEDIA" default:"true"`
	StreamHeaderTimeout time.Duration `yaml:"stream_header_timeout" envconfig:"STREAM_HEADER_TIMEOUT" default:"30s"`
	ReconnectDelay      time.Duration `yaml:"reconnect_delay" envconfig:"RECONNECT_DELAY" default:"2s"`
	MaxReconnects       int           `yaml:"max_reconnects" envconfig:"MAX_RECONNECTS" default:"5"`
	UserAgent           string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
	OutputDir           string        `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"."`
	TempDir             string        `yaml:"temp_dir" envconfig:"TEMP_DIR" default:""`
}

// HistoryConfig holds download-history persistence configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"HISTORY_ENABLED" default:"true"`
	Path    string `yaml:"path" envconfig:"HISTORY_PATH" default:"vidgrab-history.db"`
}

// PlatformConfig describes one platform's backend base URL and URL rules.
// Entries here are merged over the built-in platform set, so a config file
// can re-point a backend or add a platform entirely.
type PlatformConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Domains      []string `yaml:"domains"`
	PathPrefixes []string `yaml:"path_prefixes"`
}

// Load reads configuration from an optional .env file, an optional YAML
// file, and environment variables. Environment variables override file
// values.
func Load(configPath string) (*Config, error) {
	// .env is optional; ignore absence.
	_ = godotenv.Load()

	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Download.MaxReconnects < 0 {
		return fmt.Errorf("max_reconnects must not be negative")
	}
	if c.Download.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("HISTORY_PATH is required when history is enabled")
	}
	for name, pc := range c.Platforms {
		if pc.BaseURL == "" && len(pc.Domains) == 0 {
			return fmt.Errorf("platform %q overrides nothing", name)
		}
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultBaseURL returns the conventional backend base path for a platform,
// used when no override is configured.
func DefaultBaseURL(p domain.Platform) string {
	return fmt.Sprintf("http://localhost:8081/api/%s", p)
}
