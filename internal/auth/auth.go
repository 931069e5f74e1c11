package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	// ErrUnknownProvider is returned for a provider with no configured client.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderRejected is returned when the token endpoint answers with an error payload.
	ErrProviderRejected = errors.New("provider rejected the request")

	// ErrNetwork is returned when the token endpoint cannot be reached.
	ErrNetwork = errors.New("provider unreachable")

	// ErrInvalidGrant is returned when the provider reports the refresh token as
	// revoked or expired. It is terminal and never retried.
	ErrInvalidGrant = errors.New("refresh token revoked or expired")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// ClientConfig holds the OAuth client registration for one provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleConfig returns the oauth2 configuration for Google sign-in with the
// profile and email scopes.
func GoogleConfig(c ClientConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoints.Google,
		Scopes:       []string{"profile", "email"},
	}
}

// SpotifyConfig returns the oauth2 configuration for Spotify sign-in with the
// scopes needed for profile lookup and in-browser playback.
func SpotifyConfig(c ClientConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyauth.AuthURL,
			TokenURL:  spotifyauth.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: []string{
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopeStreaming,
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserModifyPlaybackState,
		},
	}
}

// Exchanger performs authorization-code and refresh-token exchanges against
// each provider's token endpoint. Both providers produce the same Credential shape.
type Exchanger struct {
	configs    map[Provider]*oauth2.Config
	httpClient *http.Client
}

// ExchangerOption configures an Exchanger.
type ExchangerOption func(*Exchanger)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(c *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = c
	}
}

// NewExchanger creates an Exchanger for the given provider configurations.
func NewExchanger(configs map[Provider]*oauth2.Config, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		configs:    configs,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AuthURL returns the consent screen URL for provider. Google is asked for
// offline access so that it issues a refresh token.
func (e *Exchanger) AuthURL(p Provider, state string) (string, error) {
	cfg, err := e.config(p)
	if err != nil {
		return "", err
	}
	if p == ProviderGoogle {
		return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
	}
	return cfg.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for a Credential.
// Fails with ErrProviderRejected or ErrNetwork.
func (e *Exchanger) ExchangeCode(ctx context.Context, p Provider, code string) (Credential, error) {
	cfg, err := e.config(p)
	if err != nil {
		return Credential{}, err
	}

	tok, err := cfg.Exchange(e.clientContext(ctx), code)
	if err != nil {
		return Credential{}, classify(err, false)
	}
	return credentialFromToken(p, tok), nil
}

// Refresh obtains a new access token using refreshToken. If the provider's
// response carries no refresh token the original one is kept.
// Fails with ErrInvalidGrant, ErrProviderRejected or ErrNetwork.
func (e *Exchanger) Refresh(ctx context.Context, p Provider, refreshToken string) (Credential, error) {
	cfg, err := e.config(p)
	if err != nil {
		return Credential{}, err
	}
	if refreshToken == "" {
		return Credential{}, fmt.Errorf("%w: no refresh token", ErrInvalidGrant)
	}

	// An empty access token forces the token source to hit the endpoint.
	src := cfg.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Credential{}, classify(err, true)
	}

	cred := credentialFromToken(p, tok)
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

func (e *Exchanger) config(p Provider) (*oauth2.Config, error) {
	cfg, ok := e.configs[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	return cfg, nil
}

func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// classify maps oauth2 and transport errors to the package sentinels.
func classify(err error, refreshing bool) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if refreshing && rErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %s", ErrInvalidGrant, rErr.ErrorDescription)
		}
		code := rErr.ErrorCode
		if code == "" && rErr.Response != nil {
			code = rErr.Response.Status
		}
		return fmt.Errorf("%w: %s", ErrProviderRejected, code)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	return fmt.Errorf("%w: %w", ErrProviderRejected, err)
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
