// Package config loads server configuration from an optional TOML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned when required settings are missing or malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults applied before the file and environment are read.
const (
	DefaultAddr         = "127.0.0.1:8888"
	DefaultFrontendURL  = "http://localhost:3000"
	DefaultSessionTTL   = 24 * time.Hour
	DefaultExpiryMargin = 60 * time.Second
	DefaultRefreshEvery = 10 * time.Second
	DefaultRefreshBurst = 3
	DefaultLogLevel     = "info"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Session  SessionConfig  `toml:"session"`
	Google   ProviderConfig `toml:"google"`
	Spotify  ProviderConfig `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	FrontendURL string `toml:"frontend_url"`
}

// SessionConfig contains session cookie settings.
type SessionConfig struct {
	Secret string   `toml:"secret"`
	TTL    Duration `toml:"ttl"`
}

// ProviderConfig contains OAuth client credentials for one identity provider.
type ProviderConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains the PostgreSQL connection string.
// An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// AuthConfig tunes the token lifecycle.
type AuthConfig struct {
	ExpiryMargin Duration `toml:"expiry_margin"`
	RefreshEvery Duration `toml:"refresh_every"`
	RefreshBurst int      `toml:"refresh_burst"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration that decodes from TOML strings like "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        DefaultAddr,
			FrontendURL: DefaultFrontendURL,
		},
		Session: SessionConfig{TTL: Duration{DefaultSessionTTL}},
		Auth: AuthConfig{
			ExpiryMargin: Duration{DefaultExpiryMargin},
			RefreshEvery: Duration{DefaultRefreshEvery},
			RefreshBurst: DefaultRefreshBurst,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads the TOML file at path (skipped when path is empty or the file does
// not exist), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with any non-empty environment variable.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if port := getenv("PORT"); port != "" {
		host := "127.0.0.1"
		if i := strings.LastIndex(c.Server.Addr, ":"); i >= 0 {
			host = c.Server.Addr[:i]
		}
		c.Server.Addr = host + ":" + port
	}
	set(&c.Server.FrontendURL, "FRONTEND_URL")
	set(&c.Session.Secret, "SESSION_SECRET")
	set(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.Google.RedirectURI, "GOOGLE_REDIRECT_URI")
	set(&c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&c.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.Log.Level, "LOG_LEVEL")
}

// Validate reports every missing or malformed setting in a single error.
func (c *Config) Validate() error {
	var problems []string

	required := []struct {
		name  string
		value string
	}{
		{"google.client_id", c.Google.ClientID},
		{"google.client_secret", c.Google.ClientSecret},
		{"google.redirect_uri", c.Google.RedirectURI},
		{"spotify.client_id", c.Spotify.ClientID},
		{"spotify.client_secret", c.Spotify.ClientSecret},
		{"spotify.redirect_uri", c.Spotify.RedirectURI},
		{"session.secret", c.Session.Secret},
	}
	for _, r := range required {
		if r.value == "" {
			problems = append(problems, "missing "+r.name)
		}
	}

	urls := []struct {
		name  string
		value string
	}{
		{"google.redirect_uri", c.Google.RedirectURI},
		{"spotify.redirect_uri", c.Spotify.RedirectURI},
		{"server.frontend_url", c.Server.FrontendURL},
	}
	for _, u := range urls {
		if u.value != "" && !isAbsoluteURL(u.value) {
			problems = append(problems, fmt.Sprintf("%s is not a valid URL: %s", u.name, u.value))
		}
	}

	if c.Session.TTL.Duration <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}
	if c.Auth.ExpiryMargin.Duration < 0 {
		problems = append(problems, "auth.expiry_margin must not be negative")
	}
	if c.Auth.RefreshBurst < 1 {
		problems = append(problems, "auth.refresh_burst must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
