package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
)

// Track looks up a single track by its Spotify ID.
func (c *Client) Track(ctx context.Context, id string) (playlist.Track, error) {
	full, err := c.api.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return playlist.Track{}, fmt.Errorf("getting track %s: %w", id, classify(err))
	}
	return convertTrack(full), nil
}

// convertTrack converts a Spotify FullTrack to playlist.Track.
func convertTrack(full *spotify.FullTrack) playlist.Track {
	// Join artist names
	artists := make([]string, len(full.Artists))
	for i, a := range full.Artists {
		artists[i] = a.Name
	}

	return playlist.Track{
		SpotifyID:   full.ID.String(),
		Title:       full.Name,
		Artist:      strings.Join(artists, ", "),
		AlbumArtURL: largestImage(full.Album.Images),
	}
}

// largestImage returns the URL of the widest image, or "" when there are none.
func largestImage(images []spotify.Image) string {
	var best spotify.Image
	for _, img := range images {
		if img.URL != "" && (best.URL == "" || img.Width > best.Width) {
			best = img
		}
	}
	return best.URL
}

// LookupTrack finds a track using the session's Spotify credential.
func (f Factory) LookupTrack(ctx context.Context, cred auth.Credential, id string) (playlist.Track, error) {
	return f.Client(ctx, cred).Track(ctx, id)
}
