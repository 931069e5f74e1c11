package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
)

func TestConvertTrack(t *testing.T) {
	tests := []struct {
		name           string
		full           spotify.FullTrack
		expectedArtist string
		expectedArt    string
	}{
		{
			name: "single artist",
			full: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:      "track123",
					Name:    "Test Song",
					Artists: []spotify.SimpleArtist{{Name: "Artist One"}},
				},
				Album: spotify.SimpleAlbum{
					Images: []spotify.Image{{URL: "https://i.scdn.co/small", Width: 64}},
				},
			},
			expectedArtist: "Artist One",
			expectedArt:    "https://i.scdn.co/small",
		},
		{
			name: "multiple artists and images",
			full: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:   "track456",
					Name: "Collab Track",
					Artists: []spotify.SimpleArtist{
						{Name: "Artist A"},
						{Name: "Artist B"},
						{Name: "Artist C"},
					},
				},
				Album: spotify.SimpleAlbum{
					Images: []spotify.Image{
						{URL: "https://i.scdn.co/300", Width: 300},
						{URL: "https://i.scdn.co/640", Width: 640},
						{URL: "https://i.scdn.co/64", Width: 64},
					},
				},
			},
			expectedArtist: "Artist A, Artist B, Artist C",
			expectedArt:    "https://i.scdn.co/640",
		},
		{
			name: "no album art",
			full: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:      "track000",
					Name:    "Unknown Track",
					Artists: []spotify.SimpleArtist{},
				},
			},
			expectedArtist: "",
			expectedArt:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertTrack(&tt.full)

			if got.SpotifyID != tt.full.ID.String() {
				t.Errorf("SpotifyID = %q, want %q", got.SpotifyID, tt.full.ID)
			}
			if got.Title != tt.full.Name {
				t.Errorf("Title = %q, want %q", got.Title, tt.full.Name)
			}
			if got.Artist != tt.expectedArtist {
				t.Errorf("Artist = %q, want %q", got.Artist, tt.expectedArtist)
			}
			if got.AlbumArtURL != tt.expectedArt {
				t.Errorf("AlbumArtURL = %q, want %q", got.AlbumArtURL, tt.expectedArt)
			}
		})
	}
}

// newAPIServer fakes the parts of the Web API the client uses.
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer spotify-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"Invalid access token"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"listener","display_name":"","email":"l@example.com"}`))
	})
	mux.HandleFunc("/tracks/known", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"known","name":"Song","artists":[{"name":"Band"}],"album":{"images":[]}}`))
	})
	mux.HandleFunc("/tracks/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"message":"Not found"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFactory_FetchProfile(t *testing.T) {
	srv := newAPIServer(t)
	f := Factory{BaseURL: srv.URL + "/"}

	profile, err := f.FetchProfile(context.Background(), auth.Credential{Provider: auth.ProviderSpotify, AccessToken: "spotify-token"})
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	want := auth.Profile{Provider: auth.ProviderSpotify, ID: "listener", DisplayName: "listener", Email: "l@example.com"}
	if profile != want {
		t.Errorf("FetchProfile() = %+v, want %+v", profile, want)
	}

	_, err = f.FetchProfile(context.Background(), auth.Credential{AccessToken: "bad"})
	if !errors.Is(err, auth.ErrExpiredUnrefreshable) {
		t.Errorf("FetchProfile() with rejected token error = %v, want ErrExpiredUnrefreshable", err)
	}
}

func TestClient_Track(t *testing.T) {
	srv := newAPIServer(t)
	c := Factory{BaseURL: srv.URL + "/"}.Client(context.Background(), auth.Credential{AccessToken: "spotify-token"})

	track, err := c.Track(context.Background(), "known")
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if track.Title != "Song" || track.Artist != "Band" {
		t.Errorf("Track() = %+v", track)
	}
	if track.ArtURL() != playlist.PlaceholderArt {
		t.Errorf("ArtURL() = %q, want placeholder", track.ArtURL())
	}

	if _, err := c.Track(context.Background(), "missing"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Track(missing) error = %v, want ErrTrackNotFound", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", spotify.Error{Status: http.StatusNotFound, Message: "Not found"}, ErrTrackNotFound},
		{"revoked token", spotify.Error{Status: http.StatusUnauthorized, Message: "The access token expired"}, auth.ErrExpiredUnrefreshable},
		{"rate limited", spotify.Error{Status: http.StatusTooManyRequests, Message: "slow down"}, auth.ErrProviderRejected},
		{"server error", spotify.Error{Status: http.StatusBadGateway}, auth.ErrProviderRejected},
		{"transport", errors.New("connection reset"), auth.ErrNetwork},
		{"cancelled", context.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}
