package db

import (
	"time"

	"github.com/google/uuid"
)

// User is an application-level identity. Provider identities link to it.
type User struct {
	ID          int64
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity links a provider account to a User.
type Identity struct {
	Provider       string
	ProviderUserID string
	UserID         int64
	CreatedAt      time.Time
}

// Session represents an authenticated web session.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Credential is one provider's OAuth tokens for a session.
type Credential struct {
	SessionID    string
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time // nullable - provider reported no expiry
	Scope        string
	UpdatedAt    time.Time
}

// Playlist is a saved playlist owned by a user.
type Playlist struct {
	ID          uuid.UUID
	OwnerUserID int64
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlaylistTrack is a track at a fixed position in a saved playlist.
type PlaylistTrack struct {
	PlaylistID  uuid.UUID
	Position    int
	SpotifyID   string
	Title       string
	Artist      string
	AlbumArtURL *string // nullable
}
