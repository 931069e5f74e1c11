package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlaylistRepository handles playlist database operations.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new playlist with its tracks in their given order.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *Playlist, tracks []PlaylistTrack) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if playlist.ID == uuid.Nil {
		playlist.ID = uuid.New()
	}

	playlistQuery := `
		INSERT INTO playlists (id, owner_user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, playlistQuery,
		playlist.ID,
		playlist.OwnerUserID,
		playlist.Title,
	).Scan(&playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting playlist: %w", err)
	}

	if len(tracks) > 0 {
		rows := make([][]any, len(tracks))
		for i, t := range tracks {
			rows[i] = []any{playlist.ID, i, t.SpotifyID, t.Title, t.Artist, t.AlbumArtURL}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"playlist_tracks"},
			[]string{"playlist_id", "position", "spotify_id", "title", "artist", "album_art_url"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("inserting playlist tracks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a playlist by ID.
func (r *PlaylistRepository) Get(ctx context.Context, id uuid.UUID) (*Playlist, error) {
	query := `
		SELECT id, owner_user_id, title, created_at, updated_at
		FROM playlists
		WHERE id = $1
	`
	return scanPlaylist(r.pool.QueryRow(ctx, query, id))
}

// LatestForOwner retrieves the most recently saved playlist of a user.
func (r *PlaylistRepository) LatestForOwner(ctx context.Context, ownerUserID int64) (*Playlist, error) {
	query := `
		SELECT id, owner_user_id, title, created_at, updated_at
		FROM playlists
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPlaylist(r.pool.QueryRow(ctx, query, ownerUserID))
}

// GetTracks retrieves the tracks of a playlist in saved order.
func (r *PlaylistRepository) GetTracks(ctx context.Context, playlistID uuid.UUID) ([]PlaylistTrack, error) {
	query := `
		SELECT playlist_id, position, spotify_id, title, artist, album_art_url
		FROM playlist_tracks
		WHERE playlist_id = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("querying playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []PlaylistTrack
	for rows.Next() {
		var t PlaylistTrack
		if err := rows.Scan(
			&t.PlaylistID,
			&t.Position,
			&t.SpotifyID,
			&t.Title,
			&t.Artist,
			&t.AlbumArtURL,
		); err != nil {
			return nil, fmt.Errorf("scanning playlist track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// UpdateTitle renames a playlist and returns the updated row.
func (r *PlaylistRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*Playlist, error) {
	query := `
		UPDATE playlists
		SET title = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, owner_user_id, title, created_at, updated_at
	`
	return scanPlaylist(r.pool.QueryRow(ctx, query, id, title))
}

// Delete removes a playlist and its tracks.
// Returns ErrNotFound if no playlist had the ID.
func (r *PlaylistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM playlists WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPlaylist(row pgx.Row) (*Playlist, error) {
	var p Playlist
	err := row.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Title,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}
	return &p, nil
}
