// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-playlist-sessions/internal/auth"
)

// ErrTrackNotFound is returned when Spotify has no track with the ID.
var ErrTrackNotFound = errors.New("track not found")

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// Factory builds clients bound to a session's credential.
type Factory struct {
	// BaseURL overrides the Web API root. It must end with a slash.
	BaseURL string
	// HTTPClient is the base transport, defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client returns a Client that authenticates with cred.
// The credential is used as is; refreshing it is the caller's job.
func (f Factory) Client(ctx context.Context, cred auth.Credential) *Client {
	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token()))

	var opts []spotify.ClientOption
	if f.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(f.BaseURL))
	}
	return New(spotify.New(httpClient, opts...))
}

// FetchProfile implements auth.ProfileFetcher for Spotify accounts.
func (f Factory) FetchProfile(ctx context.Context, cred auth.Credential) (auth.Profile, error) {
	user, err := f.Client(ctx, cred).api.CurrentUser(ctx)
	if err != nil {
		return auth.Profile{}, fmt.Errorf("getting current user: %w", classify(err))
	}
	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	return auth.Profile{
		Provider:    auth.ProviderSpotify,
		ID:          user.ID,
		DisplayName: name,
		Email:       user.Email,
	}, nil
}

// classify maps Web API failures onto the auth error taxonomy. A 401 means
// the access token was revoked before its reported expiry.
func classify(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrTrackNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", auth.ErrExpiredUnrefreshable, err)
		}
		return fmt.Errorf("%w: %w", auth.ErrProviderRejected, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", auth.ErrNetwork, err)
}

var _ auth.ProfileFetcher = Factory{}
