// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package config loads server configuration from an optional YAML file
// and command-line flags layered over built-in defaults.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/internal/xdg"
)

// Error codes for configuration failures.
const (
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
	CodeInvalid    = "CONFIG_INVALID"
)

// Default values for server flags and the config file.
const (
	DefaultTelnetAddr  = ":4201"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
)

// Config is the full server configuration.
type Config struct {
	Server        Server        `koanf:"server"`
	Database      Database      `koanf:"database"`
	Store         Store         `koanf:"store"`
	Observability Observability `koanf:"observability"`
	Game          Game          `koanf:"game"`
}

// Server holds listener addresses.
type Server struct {
	TelnetAddr string `koanf:"telnet_addr"`
	// TLSAddr enables a TLS listener alongside the plaintext one.
	// Empty disables it.
	TLSAddr string `koanf:"tls_addr"`
	// TLSCert and TLSKey name a PEM certificate pair for the TLS
	// listener. When both are empty a self-signed pair is generated
	// under the XDG data directory.
	TLSCert string `koanf:"tls_cert"`
	TLSKey  string `koanf:"tls_key"`
}

// Database holds the Postgres connection settings. An empty URL means
// accounts and characters live in memory.
type Database struct {
	// URL is the Postgres DSN. Falls back to the DATABASE_URL
	// environment variable when unset.
	URL string `koanf:"url"`
	// MaxConns caps the pgx pool size. Zero keeps the driver default.
	MaxConns int `koanf:"max_conns"`
}

// Store holds paths for embedded stores.
type Store struct {
	// AttrsPath is the bbolt attribute database file. Defaults to
	// attrs.db under the XDG data directory.
	AttrsPath string `koanf:"attrs_path"`
}

// Observability holds metrics and logging settings.
type Observability struct {
	// MetricsAddr serves Prometheus metrics and health endpoints.
	// Empty disables the server.
	MetricsAddr string `koanf:"metrics_addr"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`
}

// Game holds gameplay policy.
type Game struct {
	GuestsEnabled bool `koanf:"guests_enabled"`
	MaxGuests     int  `koanf:"max_guests"`
	MaxCharacters int  `koanf:"max_characters"`
	// Autoquell selects which accounts drop privileges on login:
	// always, staff, or never.
	Autoquell string `koanf:"autoquell"`
	// BroadcastEcho is the default for accounts that have not set an
	// echo preference for their own broadcasts.
	BroadcastEcho bool `koanf:"broadcast_echo"`
	// BannerFile replaces the built-in connect banner when set.
	BannerFile string `koanf:"banner_file"`
	// WelcomeImageURL is offered to clients that render out-of-band
	// media. Empty sends none.
	WelcomeImageURL string `koanf:"welcome_image_url"`
}

// QuellPolicy returns the parsed autoquell policy.
func (g Game) QuellPolicy() (session.QuellPolicy, error) {
	//nolint:wrapcheck // Callers wrap with context-specific info
	return session.ParseQuellPolicy(g.Autoquell)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			TelnetAddr: DefaultTelnetAddr,
		},
		Observability: Observability{
			MetricsAddr: DefaultMetricsAddr,
			LogFormat:   DefaultLogFormat,
			LogLevel:    DefaultLogLevel,
		},
		Game: Game{
			GuestsEnabled: true,
			MaxGuests:     account.DefaultMaxGuests,
			MaxCharacters: account.DefaultMaxCharacters,
			Autoquell:     string(session.QuellAlways),
			BroadcastEcho: true,
		},
	}
}

// DefaultPath returns the conventional config file location,
// config.yaml under the XDG config directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// flagKeys maps command-line flag names onto config keys. Flags not
// listed here are ignored by the config layer.
var flagKeys = map[string]string{
	"telnet-addr":  "server.telnet_addr",
	"tls-addr":     "server.tls_addr",
	"metrics-addr": "observability.metrics_addr",
	"log-format":   "observability.log_format",
	"log-level":    "observability.log_level",
	"database-url": "database.url",
	"attrs-path":   "store.attrs_path",
}

// Load builds the configuration from defaults, the YAML file at path,
// and the given flags, in that order of precedence (later wins). An
// empty path reads DefaultPath if it exists; a named path must exist.
// Flags left at their defaults do not override file values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	optional := path == ""
	if optional {
		path = DefaultPath()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.
				Code(CodeLoadFailed).
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k,
			func(name, value string) (string, any) {
				return flagKeys[name], value
			})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.
				Code(CodeLoadFailed).
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.
			Code(CodeLoadFailed).
			With("operation", "unmarshal config").
			With("path", path).
			Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Store.AttrsPath == "" {
		cfg.Store.AttrsPath = filepath.Join(xdg.DataDir(), "attrs.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.TelnetAddr == "" {
		return oops.Code(CodeInvalid).New("server.telnet_addr is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return oops.Code(CodeInvalid).New("server.tls_cert and server.tls_key must be set together")
	}
	if f := c.Observability.LogFormat; f != "json" && f != "text" {
		return oops.
			Code(CodeInvalid).
			With("log_format", f).
			Errorf("observability.log_format must be %q or %q, got %q", "json", "text", f)
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.
			Code(CodeInvalid).
			With("log_level", c.Observability.LogLevel).
			Errorf("observability.log_level must be debug, info, warn, or error, got %q", c.Observability.LogLevel)
	}
	if _, err := session.ParseQuellPolicy(c.Game.Autoquell); err != nil {
		return oops.
			Code(CodeInvalid).
			With("autoquell", c.Game.Autoquell).
			Wrap(err)
	}
	if c.Game.MaxGuests < 1 {
		return oops.
			Code(CodeInvalid).
			With("max_guests", c.Game.MaxGuests).
			New("game.max_guests must be at least 1")
	}
	if c.Game.MaxCharacters < 1 {
		return oops.
			Code(CodeInvalid).
			With("max_characters", c.Game.MaxCharacters).
			New("game.max_characters must be at least 1")
	}
	if c.Database.MaxConns < 0 {
		return oops.
			Code(CodeInvalid).
			With("max_conns", c.Database.MaxConns).
			New("database.max_conns must not be negative")
	}
	return nil
}
