// Package config loads terminal settings from flags, environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LAUNCH_MEME_WS_TOKEN.
const EnvPrefix = "LAUNCH_MEME"

// Archive backends.
const (
	ArchiveOff        = "off"
	ArchiveMemory     = "memory"
	ArchivePostgres   = "postgres"
	ArchiveClickHouse = "clickhouse"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	APIBaseURL      string
	WSURL           string
	WSToken         string
	WSPrefix        string
	RESTTimeout     time.Duration
	RefreshInterval time.Duration
	HTTPAddr        string
	LogLevel        string
	Archive         string
	ArchiveBuffer   int
	PostgresDSN     string
	ClickHouseDSN   string
}

// Defaults.
const (
	DefaultAPIBaseURL      = "https://launch.meme/api"
	DefaultWSURL           = "wss://launch.meme/connection/websocket"
	DefaultWSPrefix        = "pumpfun"
	DefaultRESTTimeout     = 12 * time.Second
	DefaultRefreshInterval = 60 * time.Second
	DefaultHTTPAddr        = ":8080"
	DefaultArchiveBuffer   = 1024
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api", DefaultAPIBaseURL)
	v.SetDefault("ws", DefaultWSURL)
	v.SetDefault("ws-token", "")
	v.SetDefault("ws-prefix", DefaultWSPrefix)
	v.SetDefault("rest-timeout", DefaultRESTTimeout)
	v.SetDefault("refresh-interval", DefaultRefreshInterval)
	v.SetDefault("http-addr", DefaultHTTPAddr)
	v.SetDefault("log-level", "info")
	v.SetDefault("archive", ArchiveOff)
	v.SetDefault("archive-buffer", DefaultArchiveBuffer)
	v.SetDefault("postgres-dsn", "")
	v.SetDefault("clickhouse-dsn", "")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("terminal")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		APIBaseURL:      strings.TrimRight(v.GetString("api"), "/"),
		WSURL:           v.GetString("ws"),
		WSToken:         strings.TrimSpace(v.GetString("ws-token")),
		WSPrefix:        v.GetString("ws-prefix"),
		RESTTimeout:     v.GetDuration("rest-timeout"),
		RefreshInterval: v.GetDuration("refresh-interval"),
		HTTPAddr:        v.GetString("http-addr"),
		LogLevel:        v.GetString("log-level"),
		Archive:         strings.ToLower(v.GetString("archive")),
		ArchiveBuffer:   v.GetInt("archive-buffer"),
		PostgresDSN:     v.GetString("postgres-dsn"),
		ClickHouseDSN:   v.GetString("clickhouse-dsn"),
	}

	return cfg, nil
}

// Validate checks the config for values the terminal cannot run with.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base url is required")
	}
	if c.RESTTimeout <= 0 {
		return fmt.Errorf("rest timeout must be positive, got %s", c.RESTTimeout)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}

	switch c.Archive {
	case ArchiveOff, ArchiveMemory:
	case ArchivePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres archive requires postgres-dsn")
		}
	case ArchiveClickHouse:
		if c.ClickHouseDSN == "" {
			return fmt.Errorf("clickhouse archive requires clickhouse-dsn")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive)
	}
	if c.Archive != ArchiveOff && c.ArchiveBuffer <= 0 {
		return fmt.Errorf("archive buffer must be positive, got %d", c.ArchiveBuffer)
	}
	return nil
}

// StreamingEnabled reports whether a realtime credential is configured.
func (c Config) StreamingEnabled() bool {
	return c.WSToken != ""
}
