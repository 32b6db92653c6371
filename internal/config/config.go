// Package config loads runtime settings.
//
// Priority (highest to lowest):
//  1. Command line flags
//  2. Environment variables with the DUKA_ prefix (e.g. DUKA_DATABASE_PATH)
//  3. Config file (duka.toml, duka.yaml, ... in . or /etc/duka, or --config)
//  4. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
	Ledger   LedgerConfig
	Images   ImagesConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	AdminUser   string
	TokenExpiry time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	File   string // optional, appended to
}

// LedgerConfig holds stock ledger settings.
type LedgerConfig struct {
	MaxAttempts int
}

// ImagesConfig holds item photo limits.
type ImagesConfig struct {
	MaxDimension   int
	Quality        int
	MaxUploadBytes int64
}

var defaults = map[string]any{
	"server.addr":                ":8080",
	"server.read_header_timeout": 10 * time.Second,
	"server.read_timeout":        30 * time.Second,
	"server.write_timeout":       60 * time.Second,
	"server.idle_timeout":        120 * time.Second,
	"server.shutdown_timeout":    5 * time.Second,
	"database.path":              "duka.sqlite3",
	"auth.admin_user":            "Admin",
	"auth.token_expiry":          7 * 24 * time.Hour,
	"log.level":                  "info",
	"log.format":                 "console",
	"log.file":                   "",
	"ledger.max_attempts":        5,
	"images.max_dimension":       1024,
	"images.quality":             85,
	"images.max_upload_bytes":    int64(10 << 20),
}

// ErrHelp is returned by Load when usage was requested.
var ErrHelp = pflag.ErrHelp

// Load parses args (without the program name) and merges every source into
// a Config. Usage and flag errors are written to out.
func Load(args []string, out io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet("duka", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringP("config", "c", "", "config file path")
	fs.StringP("db", "d", "", "SQLite database path (default: duka.sqlite3)")
	fs.StringP("addr", "a", "", "listen address (default: :8080)")
	fs.StringP("user", "u", "", "admin username on first run (default: Admin)")
	fs.StringP("log", "l", "", "log file path (default: stdout/stderr only)")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: console, json")
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: duka [flags]\n\nFlags:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("DUKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("duka")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/duka")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, flag := range map[string]string{
		"database.path":   "db",
		"server.addr":     "addr",
		"auth.admin_user": "user",
		"log.file":        "log",
		"log.level":       "log-level",
		"log.format":      "log-format",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:              v.GetString("server.addr"),
			ReadHeaderTimeout: v.GetDuration("server.read_header_timeout"),
			ReadTimeout:       v.GetDuration("server.read_timeout"),
			WriteTimeout:      v.GetDuration("server.write_timeout"),
			IdleTimeout:       v.GetDuration("server.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Auth: AuthConfig{
			AdminUser:   v.GetString("auth.admin_user"),
			TokenExpiry: v.GetDuration("auth.token_expiry"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		Ledger: LedgerConfig{
			MaxAttempts: v.GetInt("ledger.max_attempts"),
		},
		Images: ImagesConfig{
			MaxDimension:   v.GetInt("images.max_dimension"),
			Quality:        v.GetInt("images.quality"),
			MaxUploadBytes: v.GetInt64("images.max_upload_bytes"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Database.Path == "":
		return errors.New("database.path is required")
	case c.Server.Addr == "":
		return errors.New("server.addr is required")
	case c.Auth.AdminUser == "":
		return errors.New("auth.admin_user is required")
	case c.Auth.TokenExpiry <= 0:
		return errors.New("auth.token_expiry must be positive")
	case c.Ledger.MaxAttempts < 1:
		return errors.New("ledger.max_attempts must be at least 1")
	case c.Images.MaxDimension < 16:
		return errors.New("images.max_dimension must be at least 16")
	case c.Images.Quality < 1 || c.Images.Quality > 100:
		return fmt.Errorf("images.quality must be between 1 and 100, got %d", c.Images.Quality)
	case c.Images.MaxUploadBytes <= 0:
		return errors.New("images.max_upload_bytes must be positive")
	}
	return nil
}
