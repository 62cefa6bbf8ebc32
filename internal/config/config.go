package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/stockdash/internal/core"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. STOCKDASH_BACKEND_BASE_URL.
const EnvPrefix = "STOCKDASH"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Price     PriceConfig     `mapstructure:"price"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// BackendConfig points at the Flask backend that persists watchlists and
// serves market data.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PriceConfig struct {
	Source  string        `mapstructure:"source"` // "backend" or "yahoo"
	Timeout time.Duration `mapstructure:"timeout"`
}

// DirectoryConfig locates the symbol directory, a file path or URL.
type DirectoryConfig struct {
	Path      string `mapstructure:"path"`
	MarketKey string `mapstructure:"market_key"`
}

type WatchlistConfig struct {
	RefreshConcurrency int  `mapstructure:"refresh_concurrency"`
	ConfirmRemoval     bool `mapstructure:"confirm_removal"`
}

// IdentityConfig signs the process in as a fixed user. Empty means
// local-only mode.
type IdentityConfig struct {
	UserID string `mapstructure:"user_id"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys the
// file leaves out.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("price.source", d.Price.Source)
	v.SetDefault("price.timeout", d.Price.Timeout)
	v.SetDefault("directory.path", d.Directory.Path)
	v.SetDefault("directory.market_key", d.Directory.MarketKey)
	v.SetDefault("watchlist.refresh_concurrency", d.Watchlist.RefreshConcurrency)
	v.SetDefault("watchlist.confirm_removal", d.Watchlist.ConfirmRemoval)
	v.SetDefault("identity.user_id", d.Identity.UserID)
	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.s3.bucket", d.Archive.S3.Bucket)
	v.SetDefault("archive.s3.endpoint", d.Archive.S3.Endpoint)
	v.SetDefault("archive.s3.region", d.Archive.S3.Region)
	v.SetDefault("archive.s3.access_key", d.Archive.S3.AccessKey)
	v.SetDefault("archive.s3.secret_key", d.Archive.S3.SecretKey)
	v.SetDefault("archive.s3.prefix", d.Archive.S3.Prefix)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Price: PriceConfig{
			Source:  "backend",
			Timeout: 10 * time.Second,
		},
		Directory: DirectoryConfig{
			Path:      "data/symbols.json",
			MarketKey: "NSE - Yahoo Code ",
		},
		Watchlist: WatchlistConfig{
			RefreshConcurrency: 8,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "data/archive",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Backend.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("backend base_url required"))
	}
	if c.Backend.Timeout < 0 || c.Price.Timeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("timeouts cannot be negative"))
	}

	switch c.Price.Source {
	case "backend", "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("price source must be backend or yahoo, got %q", c.Price.Source))
	}

	if c.Watchlist.RefreshConcurrency < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("refresh_concurrency cannot be negative, got %d", c.Watchlist.RefreshConcurrency))
	}

	// Archive validation - if s3, bucket is required
	switch c.Archive.Type {
	case "", "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required for localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	return nil
}
