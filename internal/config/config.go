// Package config resolves service configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all fleetplan configuration.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Optimizer EndpointConfig `yaml:"optimizer"`
	Geocoder  EndpointConfig `yaml:"geocoder"`
	// ConfigURL serves the public {tomtom_key} document.
	ConfigURL string        `yaml:"config_url"`
	Redis     RedisConfig   `yaml:"redis"`
	Preview   PreviewConfig `yaml:"preview"`
	Session   SessionConfig `yaml:"session"`
	Tiles     TilesConfig   `yaml:"tiles"`
	Logging   LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port              string  `yaml:"port"`
	ReadHeaderTimeout string  `yaml:"read_header_timeout"`
	RateRPS           float64 `yaml:"rate_rps"` // 0 disables inbound limiting
	RateBurst         int     `yaml:"rate_burst"`
	MaxUploadBytes    int64   `yaml:"max_upload_bytes"`
}

// EndpointConfig describes a remote JSON service.
type EndpointConfig struct {
	URL     string  `yaml:"url"`
	Secret  string  `yaml:"secret"`
	Timeout string  `yaml:"timeout"`
	RPS     float64 `yaml:"rps"` // 0 means unlimited
	Burst   int     `yaml:"burst"`
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type PreviewConfig struct {
	Limit int `yaml:"limit"`
}

type SessionConfig struct {
	TTL string `yaml:"ttl"`
}

type TilesConfig struct {
	OSMURL    string `yaml:"osm_url"`
	TomTomURL string `yaml:"tomtom_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadHeaderTimeout: "5s",
			RateBurst:         20,
			MaxUploadBytes:    16 << 20,
		},
		Optimizer: EndpointConfig{Timeout: "120s", Burst: 1},
		Geocoder:  EndpointConfig{Timeout: "30s", Burst: 1},
		Redis:     RedisConfig{Channel: "fleetplan:session-events"},
		Preview:   PreviewConfig{Limit: 1000},
		Session:   SessionConfig{TTL: "12h"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty and present) over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	c.Server.Port = envOr("PORT", c.Server.Port)
	c.Optimizer.URL = envOr("OPTIMIZER_URL", c.Optimizer.URL)
	c.Optimizer.Secret = envOr("OPTIMIZER_SECRET", c.Optimizer.Secret)
	c.Geocoder.URL = envOr("GEOCODER_URL", c.Geocoder.URL)
	c.ConfigURL = envOr("CONFIG_URL", c.ConfigURL)
	c.Redis.URL = envOr("REDIS_URL", c.Redis.URL)
	c.Logging.Level = envOr("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envOr("LOG_FORMAT", c.Logging.Format)

	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.Server.RateRPS = f
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.Server.RateBurst = n
	}
	if v := os.Getenv("PREVIEW_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PREVIEW_LIMIT: %w", err)
		}
		c.Preview.Limit = n
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Preview.Limit <= 0 {
		return fmt.Errorf("preview limit must be positive, got %d", c.Preview.Limit)
	}
	if c.Server.RateRPS < 0 || c.Optimizer.RPS < 0 || c.Geocoder.RPS < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + c.Server.Port }

// GetReadHeaderTimeout returns the header timeout as a duration.
func (c *Config) GetReadHeaderTimeout() time.Duration {
	return duration(c.Server.ReadHeaderTimeout, 5*time.Second)
}

// GetSessionTTL returns the idle session lifetime.
func (c *Config) GetSessionTTL() time.Duration {
	return duration(c.Session.TTL, 12*time.Hour)
}

// GetTimeout returns the endpoint timeout as a duration.
func (e EndpointConfig) GetTimeout() time.Duration {
	return duration(e.Timeout, 60*time.Second)
}

// Enabled reports whether the endpoint has a URL.
func (e EndpointConfig) Enabled() bool { return e.URL != "" }

// Public is the config snapshot shown on /debug/info with secrets masked.
func (c *Config) Public() map[string]any {
	return map[string]any{
		"PORT":                 c.Server.Port,
		"RATE_RPS":             c.Server.RateRPS,
		"RATE_BURST":           c.Server.RateBurst,
		"PREVIEW_LIMIT":        c.Preview.Limit,
		"LOG_LEVEL":            c.Logging.Level,
		"HAS_OPTIMIZER_URL":    c.Optimizer.URL != "",
		"HAS_OPTIMIZER_SECRET": c.Optimizer.Secret != "",
		"HAS_GEOCODER_URL":     c.Geocoder.URL != "",
		"HAS_CONFIG_URL":       c.ConfigURL != "",
		"HAS_REDIS_URL":        c.Redis.URL != "",
	}
}

func duration(s string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
