package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// googleUserInfoURL is Google's OAuth2 userinfo endpoint.
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Profile is the identity a provider reports for the signed-in account.
type Profile struct {
	Provider    Provider
	ID          string
	DisplayName string
	Email       string
}

// ProfileFetcher reads the account profile using a fresh credential.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, cred Credential) (Profile, error)
}

// GoogleProfiles fetches profiles from Google's userinfo endpoint.
type GoogleProfiles struct {
	URL        string       // defaults to the public userinfo endpoint
	HTTPClient *http.Client // base transport, defaults to http.DefaultClient
}

type googleUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FetchProfile implements ProfileFetcher.
func (g GoogleProfiles) FetchProfile(ctx context.Context, cred Credential) (Profile, error) {
	endpoint := g.URL
	if endpoint == "" {
		endpoint = googleUserInfoURL
	}
	if g.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo returned %s", ErrProviderRejected, resp.Status)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return Profile{}, fmt.Errorf("parsing userinfo response: %w", err)
	}
	if info.ID == "" {
		return Profile{}, fmt.Errorf("%w: userinfo has no id", ErrProviderRejected)
	}

	return Profile{
		Provider:    ProviderGoogle,
		ID:          info.ID,
		DisplayName: info.Name,
		Email:       info.Email,
	}, nil
}
