// Package auth manages OAuth credentials for Google and Spotify sessions:
// code exchange, refresh, per-session storage and the refresh policy applied
// before protected requests.
package auth

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Provider identifies an external identity provider.
type Provider string

// Supported providers. Adding a provider means adding a value here and an
// oauth2.Config for it in the Exchanger.
const (
	ProviderGoogle  Provider = "google"
	ProviderSpotify Provider = "spotify"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderGoogle, ProviderSpotify}

// ParseProvider converts a route or database value to a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// Credential is the access/refresh/expiry tuple one session holds for one
// provider. AccessToken and ExpiresAt are always replaced together.
type Credential struct {
	Provider     Provider
	AccessToken  string
	RefreshToken string    // optional
	ExpiresAt    time.Time // zero means the provider reported no expiry
	Scope        string
}

// Refreshable reports whether a refresh token is available.
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// ExpiredAt reports whether the access token should be treated as expired at
// now. Tokens within margin of their expiry count as expired so that a request
// never starts with a token that lapses mid-flight.
func (c Credential) ExpiredAt(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(c.ExpiresAt)
}

// Token converts the credential to an oauth2.Token for API clients.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
		TokenType:    "Bearer",
	}
}

// credentialFromToken builds a Credential from a token endpoint response.
func credentialFromToken(p Provider, tok *oauth2.Token) Credential {
	cred := Credential{
		Provider:     p,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}
	return cred
}
