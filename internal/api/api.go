// Package api defines the JSON bodies exchanged between the playlist server
// and its clients.
package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-playlist-sessions/internal/playlist"
)

// Track is the wire form of playlist.Track.
type Track struct {
	SpotifyID string `json:"spotify_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	AlbumArt  string `json:"albumArt,omitempty"`
}

// Playlist is the wire form of playlist.Playlist. Drafts have no playlistId.
type Playlist struct {
	PlaylistID string     `json:"playlistId,omitempty"`
	UserID     int64      `json:"userId"`
	Title      string     `json:"title"`
	Tracks     []Track    `json:"tracks"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// CurrentPlaylist is returned by GET /myplaylist/{userID}.
type CurrentPlaylist struct {
	Playlist *Playlist `json:"playlist"`
}

// SaveRequest is the body of POST /save-playlist.
type SaveRequest struct {
	Title  string  `json:"title"`
	UserID int64   `json:"userId"`
	Tracks []Track `json:"tracks"`
}

// DraftRequest is the body of POST /draft-playlist.
type DraftRequest struct {
	UserID int64   `json:"userId"`
	Tracks []Track `json:"tracks"`
}

// RenameRequest is the body of PUT /myplaylist/{playlistID}.
type RenameRequest struct {
	NewTitle string `json:"newTitle"`
}

// Token is returned by the Spotify token endpoints.
type Token struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Me describes the current session.
type Me struct {
	UserID      int64    `json:"userId"`
	DisplayName string   `json:"displayName"`
	Providers   []string `json:"providers"`
}

// Error is the body of every failed request. Login is set when the client
// must sign in with a provider again.
type Error struct {
	Error string `json:"error"`
	Login string `json:"login,omitempty"`
}

// FromTracks converts domain tracks to their wire form. Tracks without
// album art carry the placeholder image.
func FromTracks(tracks []playlist.Track) []Track {
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = Track{
			SpotifyID: t.SpotifyID,
			Title:     t.Title,
			Artist:    t.Artist,
			AlbumArt:  t.ArtURL(),
		}
	}
	return out
}

// ToTracks converts wire tracks to domain tracks. The placeholder image is
// not stored as album art.
func ToTracks(tracks []Track) []playlist.Track {
	out := make([]playlist.Track, len(tracks))
	for i, t := range tracks {
		art := t.AlbumArt
		if art == playlist.PlaceholderArt {
			art = ""
		}
		out[i] = playlist.Track{
			SpotifyID:   t.SpotifyID,
			Title:       t.Title,
			Artist:      t.Artist,
			AlbumArtURL: art,
		}
	}
	return out
}

// FromPlaylist converts a domain playlist to its wire form.
func FromPlaylist(p *playlist.Playlist) *Playlist {
	if p == nil {
		return nil
	}
	out := &Playlist{
		UserID: p.OwnerUserID,
		Title:  p.Title,
		Tracks: FromTracks(p.Tracks),
	}
	if p.Saved() {
		out.PlaylistID = p.ID.String()
		created, updated := p.CreatedAt, p.UpdatedAt
		out.CreatedAt = &created
		out.UpdatedAt = &updated
	}
	return out
}

// ToPlaylist converts a wire playlist to a domain playlist.
func ToPlaylist(p *Playlist) (*playlist.Playlist, error) {
	if p == nil {
		return nil, nil
	}
	out := &playlist.Playlist{
		OwnerUserID: p.UserID,
		Title:       p.Title,
		Tracks:      ToTracks(p.Tracks),
	}
	if p.PlaylistID != "" {
		id, err := uuid.Parse(p.PlaylistID)
		if err != nil {
			return nil, fmt.Errorf("invalid playlist id %q: %w", p.PlaylistID, err)
		}
		out.ID = id
	}
	if p.CreatedAt != nil {
		out.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	return out, nil
}
