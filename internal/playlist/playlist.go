// Package playlist persists user playlists and enforces their ownership and
// naming rules.
package playlist

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PlaceholderArt is served in place of missing album art.
const PlaceholderArt = "/images/emptyalbumart.png"

var (
	// ErrNotFound is returned when no playlist has the requested ID.
	ErrNotFound = errors.New("playlist not found")

	// ErrForbidden is returned when the playlist belongs to another user.
	ErrForbidden = errors.New("playlist belongs to another user")

	// ErrInvalid is returned for requests that fail validation.
	ErrInvalid = errors.New("invalid playlist")
)

// Track is one song in a playlist.
type Track struct {
	SpotifyID   string
	Title       string
	Artist      string
	AlbumArtURL string // optional
}

// ArtURL returns the album art URL, or PlaceholderArt when there is none.
func (t Track) ArtURL() string {
	if t.AlbumArtURL == "" {
		return PlaceholderArt
	}
	return t.AlbumArtURL
}

// Playlist is an ordered list of tracks owned by a user.
// A draft has no ID until it is saved.
type Playlist struct {
	ID          uuid.UUID
	OwnerUserID int64
	Title       string
	Tracks      []Track
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Saved reports whether the playlist has been persisted.
func (p *Playlist) Saved() bool {
	return p != nil && p.ID != uuid.Nil
}
