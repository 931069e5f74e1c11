package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "FRONTEND_URL", "SESSION_SECRET", "DATABASE_URL", "LOG_LEVEL",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
	"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REDIRECT_URI",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "g-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "g-secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "http://localhost:8888/auth/google/callback")
	t.Setenv("SPOTIFY_CLIENT_ID", "s-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "s-secret")
	t.Setenv("SPOTIFY_REDIRECT_URI", "http://localhost:8888/auth/spotify/callback")
	t.Setenv("SESSION_SECRET", "very-secret")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	setValidEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:9000")
	}
	if cfg.Server.FrontendURL != DefaultFrontendURL {
		t.Errorf("FrontendURL = %q, want default", cfg.Server.FrontendURL)
	}
	if cfg.Session.TTL.Duration != DefaultSessionTTL {
		t.Errorf("TTL = %v, want %v", cfg.Session.TTL.Duration, DefaultSessionTTL)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty", cfg.Database.URL)
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[server]
addr = "0.0.0.0:8080"

[session]
secret = "from-file"
ttl = "2h"

[google]
client_id = "g-file"
client_secret = "g-secret"
redirect_uri = "http://example.com/auth/google/callback"

[spotify]
client_id = "s-file"
client_secret = "s-secret"
redirect_uri = "http://example.com/auth/spotify/callback"

[auth]
expiry_margin = "30s"
`)
	t.Setenv("SPOTIFY_CLIENT_ID", "s-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Spotify.ClientID != "s-env" {
		t.Errorf("Spotify.ClientID = %q, want env override", cfg.Spotify.ClientID)
	}
	if cfg.Google.ClientID != "g-file" {
		t.Errorf("Google.ClientID = %q, want file value", cfg.Google.ClientID)
	}
	if cfg.Session.TTL.Duration != 2*time.Hour {
		t.Errorf("TTL = %v, want 2h", cfg.Session.TTL.Duration)
	}
	if cfg.Auth.ExpiryMargin.Duration != 30*time.Second {
		t.Errorf("ExpiryMargin = %v, want 30s", cfg.Auth.ExpiryMargin.Duration)
	}
	if cfg.Auth.RefreshBurst != DefaultRefreshBurst {
		t.Errorf("RefreshBurst = %d, want default %d", cfg.Auth.RefreshBurst, DefaultRefreshBurst)
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	setValidEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "missing session secret",
			env:     map[string]string{"SESSION_SECRET": ""},
			wantMsg: "missing session.secret",
		},
		{
			name:    "missing spotify secret",
			env:     map[string]string{"SPOTIFY_CLIENT_SECRET": ""},
			wantMsg: "missing spotify.client_secret",
		},
		{
			name:    "bad redirect uri",
			env:     map[string]string{"GOOGLE_REDIRECT_URI": "not a url"},
			wantMsg: "google.redirect_uri is not a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
			}
			if cfg != nil {
				t.Error("Load() returned non-nil config with error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	setValidEnv(t)
	path := writeFile(t, "[server\naddr = ")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}
