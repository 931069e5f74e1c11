package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/justestif/go-playlist-sessions/internal/db"
)

// ============================================================================
// Database-Backed Repository
// ============================================================================

// DBRepository stores playlists in PostgreSQL.
type DBRepository struct {
	database *db.DB
}

// NewDBRepository creates a database-backed repository.
func NewDBRepository(database *db.DB) *DBRepository {
	return &DBRepository{database: database}
}

// Create inserts the playlist and its tracks.
func (r *DBRepository) Create(ctx context.Context, p *Playlist) error {
	row := db.Playlist{
		ID:          p.ID,
		OwnerUserID: p.OwnerUserID,
		Title:       p.Title,
	}
	if err := r.database.Playlists().Create(ctx, &row, toDBTracks(p.Tracks)); err != nil {
		return err
	}
	p.ID = row.ID
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return nil
}

// Get loads a playlist and its tracks.
func (r *DBRepository) Get(ctx context.Context, id uuid.UUID) (*Playlist, error) {
	row, err := r.database.Playlists().Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return r.withTracks(ctx, row)
}

// LatestForOwner loads the owner's most recent playlist.
func (r *DBRepository) LatestForOwner(ctx context.Context, ownerUserID int64) (*Playlist, error) {
	row, err := r.database.Playlists().LatestForOwner(ctx, ownerUserID)
	if err != nil {
		return nil, mapErr(err)
	}
	return r.withTracks(ctx, row)
}

// UpdateTitle renames a playlist.
func (r *DBRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*Playlist, error) {
	row, err := r.database.Playlists().UpdateTitle(ctx, id, title)
	if err != nil {
		return nil, mapErr(err)
	}
	return r.withTracks(ctx, row)
}

// Delete removes a playlist.
func (r *DBRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return mapErr(r.database.Playlists().Delete(ctx, id))
}

func (r *DBRepository) withTracks(ctx context.Context, row *db.Playlist) (*Playlist, error) {
	rows, err := r.database.Playlists().GetTracks(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return &Playlist{
		ID:          row.ID,
		OwnerUserID: row.OwnerUserID,
		Title:       row.Title,
		Tracks:      fromDBTracks(rows),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func toDBTracks(tracks []Track) []db.PlaylistTrack {
	out := make([]db.PlaylistTrack, len(tracks))
	for i, t := range tracks {
		out[i] = db.PlaylistTrack{
			Position:  i,
			SpotifyID: t.SpotifyID,
			Title:     t.Title,
			Artist:    t.Artist,
		}
		if t.AlbumArtURL != "" {
			art := t.AlbumArtURL
			out[i].AlbumArtURL = &art
		}
	}
	return out
}

func fromDBTracks(rows []db.PlaylistTrack) []Track {
	out := make([]Track, len(rows))
	for i, row := range rows {
		out[i] = Track{
			SpotifyID: row.SpotifyID,
			Title:     row.Title,
			Artist:    row.Artist,
		}
		if row.AlbumArtURL != nil {
			out[i].AlbumArtURL = *row.AlbumArtURL
		}
	}
	return out
}

func mapErr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("playlist store: %w", err)
	}
	return nil
}

var _ Repository = (*DBRepository)(nil)
