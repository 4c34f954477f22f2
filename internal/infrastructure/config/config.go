package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr            string `envconfig:"ADDR" yaml:"addr"`
	LogLevel        string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	DevMode         bool   `envconfig:"DEV_MODE" yaml:"dev_mode"`
	InsecureTLS     bool   `envconfig:"INSECURE_TLS" yaml:"insecure_tls"`
	CORSAllowOrigin string `envconfig:"CORS_ALLOW_ORIGIN" yaml:"cors_allow_origin"`
	// Upstream used by the capture proxy when a request carries no target.
	DefaultTarget string `envconfig:"DEFAULT_TARGET" yaml:"default_target"`
	// Artificial response delay for proxied responses, "250" or "100-400" (ms)
	ResponseDelay DelayRange `envconfig:"RESPONSE_DELAY_MS" yaml:"response_delay_ms"`

	MaxSessions       int           `envconfig:"MAX_SESSIONS" yaml:"max_sessions"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" yaml:"session_ttl"`
	RefreshDebounceMs int           `envconfig:"REFRESH_DEBOUNCE_MS" yaml:"refresh_debounce_ms"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" yaml:"rate_limit_rps"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" yaml:"rate_limit_burst"`

	DefaultSort    string   `envconfig:"DEFAULT_SORT" yaml:"default_sort"`
	DefaultFilters []string `envconfig:"DEFAULT_FILTERS" yaml:"default_filters"`
}

// DelayRange is a response delay in milliseconds; Min == Max for a fixed delay.
type DelayRange struct {
	Min int
	Max int
}

// Decode implements envconfig.Decoder.
func (d *DelayRange) Decode(value string) error {
	r, err := ParseDelayRange(value)
	if err != nil {
		return err
	}
	*d = r
	return nil
}

// UnmarshalYAML accepts both numbers and "min-max" strings.
func (d *DelayRange) UnmarshalYAML(b []byte) error {
	return d.Decode(strings.Trim(strings.TrimSpace(string(b)), `"'`))
}

// ParseDelayRange parses "250" or "100-400". Reversed bounds are swapped.
func ParseDelayRange(raw string) (DelayRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DelayRange{}, nil
	}
	minStr, maxStr, isRange := strings.Cut(raw, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(minStr))
	if err != nil || lo < 0 {
		return DelayRange{}, fmt.Errorf("invalid delay %q", raw)
	}
	if !isRange {
		return DelayRange{Min: lo, Max: lo}, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(maxStr))
	if err != nil || hi < 0 {
		return DelayRange{}, fmt.Errorf("invalid delay %q", raw)
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return DelayRange{Min: lo, Max: hi}, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:              ":9091",
		LogLevel:          "info",
		CORSAllowOrigin:   "*",
		MaxSessions:       64,
		SessionTTL:        24 * time.Hour,
		RefreshDebounceMs: 75,
		RateLimitRPS:      200,
		RateLimitBurst:    400,
		DefaultSort:       "waterfall",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML path; an empty path skips the file.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// FromEnv is Load without the error: a broken environment falls back to defaults.
func FromEnv() Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}
