package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/budget-allocator/internal/catalog"
)

const (
	defaultPort             = "8080"
	defaultRateLimitRPS     = 25.0
	defaultRateLimitBurst   = 50
	defaultLogLevel         = "info"
	defaultLogEncoding      = "json"
	defaultBatchConcurrency = 4
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string            `validate:"required"`
	Channels             []catalog.Channel `validate:"required,min=1"`
	ShutdownGracePeriod  time.Duration     `validate:"gte=0"`
	ReadHeaderTimeout    time.Duration     `validate:"gte=0"`
	WriteTimeout         time.Duration     `validate:"gte=0"`
	IdleTimeout          time.Duration     `validate:"gte=0"`
	EnableRequestLogging bool
	RateLimitRPS         float64 `validate:"gte=0"`
	RateLimitBurst       int     `validate:"gte=0"`
	LogLevel             string  `validate:"oneof=debug info warn error"`
	LogEncoding          string  `validate:"oneof=json console"`
	EnableMetrics        bool
	BatchConcurrency     int `validate:"min=1,max=64"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string            `yaml:"port"`
	Channels             []catalog.Channel `yaml:"channels"`
	ShutdownGracePeriod  string            `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string            `yaml:"read_header_timeout"`
	WriteTimeout         string            `yaml:"write_timeout"`
	IdleTimeout          string            `yaml:"idle_timeout"`
	EnableRequestLogging *bool             `yaml:"enable_request_logging"`
	RateLimit            *yamlRateLimit    `yaml:"rate_limit"`
	LogLevel             string            `yaml:"log_level"`
	LogEncoding          string            `yaml:"log_encoding"`
	EnableMetrics        *bool             `yaml:"enable_metrics"`
	BatchConcurrency     int               `yaml:"batch_concurrency"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	ChannelsStr    *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	LogLevel       *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so the YAML file can override them.
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		Channels:             catalog.DefaultChannels(),
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		LogEncoding:          defaultLogEncoding,
		EnableMetrics:        true,
		BatchConcurrency:     defaultBatchConcurrency,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if len(yamlCfg.Channels) > 0 {
		cfg.Channels = yamlCfg.Channels
	}

	applyDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	applyDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	applyDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	applyDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit != nil {
		if rps := yamlCfg.RateLimit.RPS; rps != nil && *rps >= 0 {
			cfg.RateLimitRPS = *rps
		}
		if burst := yamlCfg.RateLimit.Burst; burst != nil && *burst >= 0 {
			cfg.RateLimitBurst = *burst
		}
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(yamlCfg.LogLevel)
	}
	if yamlCfg.LogEncoding != "" {
		cfg.LogEncoding = strings.ToLower(yamlCfg.LogEncoding)
	}

	if yamlCfg.EnableMetrics != nil {
		cfg.EnableMetrics = *yamlCfg.EnableMetrics
	}

	if yamlCfg.BatchConcurrency > 0 {
		cfg.BatchConcurrency = yamlCfg.BatchConcurrency
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(os.Getenv("CHANNELS")); raw != "" {
		channels, err := parseChannels(raw)
		if err != nil {
			return fmt.Errorf("parse CHANNELS: %w", err)
		}
		cfg.Channels = channels
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	if encoding := strings.TrimSpace(os.Getenv("LOG_ENCODING")); encoding != "" {
		cfg.LogEncoding = strings.ToLower(encoding)
	}

	if enabled := strings.TrimSpace(os.Getenv("ENABLE_METRICS")); enabled != "" {
		if value, err := strconv.ParseBool(enabled); err == nil {
			cfg.EnableMetrics = value
		}
	}

	if n := strings.TrimSpace(os.Getenv("BATCH_CONCURRENCY")); n != "" {
		if value, err := strconv.Atoi(n); err == nil && value > 0 {
			cfg.BatchConcurrency = value
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.ChannelsStr != nil && *overrides.ChannelsStr != "" {
		channels, err := parseChannels(*overrides.ChannelsStr)
		if err != nil {
			return fmt.Errorf("parse channels: %w", err)
		}
		cfg.Channels = channels
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(*overrides.LogLevel)
	}

	return nil
}

// validateConfig validates the final configuration and normalises the channel catalogue.
func validateConfig(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	channels, err := catalog.Normalize(cfg.Channels)
	if err != nil {
		return fmt.Errorf("invalid channels: %w", err)
	}
	cfg.Channels = channels
	return nil
}

// parseChannels parses "name:coefficient:lower:upper" entries separated by commas.
func parseChannels(raw string) ([]catalog.Channel, error) {
	parts := strings.Split(raw, ",")
	channels := make([]catalog.Channel, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 4 {
			return nil, fmt.Errorf("channel %q must have the form name:coefficient:lower:upper", part)
		}

		values := make([]float64, 3)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("channel %q: invalid number %q", part, field)
			}
			values[i] = v
		}

		channels = append(channels, catalog.Channel{
			Name:        strings.TrimSpace(fields[0]),
			Coefficient: values[0],
			Lower:       values[1],
			Upper:       values[2],
		})
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels provided")
	}
	return catalog.Normalize(channels)
}
