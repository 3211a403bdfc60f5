package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. RESOURCECTL_SERVER_URL
	EnvPrefix = "RESOURCECTL"

	dirName  = ".resourcectl"
	fileName = "config"
	fileType = "yaml"
)

// Config holds all client configuration
type Config struct {
	ServerURL    string        `mapstructure:"server_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
	PollSchedule string        `mapstructure:"poll_schedule"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	DocsBaseURL  string        `mapstructure:"docs_base_url"`
	Output       string        `mapstructure:"output"`
	Log          LoggingConfig `mapstructure:"log"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

var defaults = map[string]interface{}{
	"server_url":    "http://localhost:8080",
	"api_key":       "",
	"timeout":       "30s",
	"rate_limit":    0,
	"rate_burst":    1,
	"poll_schedule": "@every 15s",
	"metrics_addr":  "",
	"docs_base_url": "https://docs.example.com",
	"output":        "table",
	"log.level":     "info",
	"log.format":    "console",
}

// Keys returns every known configuration key in sorted order
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is a configuration key
func IsKnown(key string) bool {
	_, ok := defaults[strings.ToLower(key)]
	return ok
}

// IsSensitive reports whether the value of key must be masked on display
func IsSensitive(key string) bool {
	return strings.EqualFold(key, "api_key")
}

// DefaultPath returns ~/.resourcectl/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName, fileName+"."+fileType), nil
}

// NewViper builds a viper instance reading cfgFile, or the default config
// file when cfgFile is empty. A missing config file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName(fileName)
		v.SetConfigType(fileType)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.Output = strings.ToLower(cfg.Output)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url must be an http(s) URL, got %q", c.ServerURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set")
	}

	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Log.Format)
	}

	return nil
}

// Write persists v to path, creating the parent directory
func Write(v *viper.Viper, path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
