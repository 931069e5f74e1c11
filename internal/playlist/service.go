package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Service handles playlist drafting and persistence.
type Service struct {
	repo   Repository
	titles *Titler
	logger *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for audit events.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTitler shares a Titler between services.
func WithTitler(t *Titler) Option {
	return func(s *Service) {
		s.titles = t
	}
}

// NewService creates a playlist service over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		titles: NewTitler(),
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Titles returns the service's placeholder title counter.
func (s *Service) Titles() *Titler {
	return s.titles
}

// Draft builds an unsaved playlist. It has no ID and carries the placeholder title.
func (s *Service) Draft(ownerUserID int64, tracks []Track) (*Playlist, error) {
	if err := validate(ownerUserID, tracks); err != nil {
		return nil, err
	}
	return &Playlist{
		OwnerUserID: ownerUserID,
		Title:       DefaultTitle,
		Tracks:      append([]Track(nil), tracks...),
	}, nil
}

// Save persists a playlist for the owner. A blank or placeholder title is
// replaced with the next placeholder for the editing session.
func (s *Service) Save(ctx context.Context, session string, ownerUserID int64, title string, tracks []Track) (*Playlist, error) {
	if err := validate(ownerUserID, tracks); err != nil {
		return nil, err
	}

	reserved := s.titles.Reserve(session, title)
	p := &Playlist{
		OwnerUserID: ownerUserID,
		Title:       reserved.Title,
		Tracks:      append([]Track(nil), tracks...),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		reserved.Release()
		return nil, fmt.Errorf("saving playlist: %w", err)
	}

	s.logger.Info("playlist saved", "playlist_id", p.ID, "owner", ownerUserID, "tracks", len(p.Tracks))
	return p, nil
}

// Rename changes the title of one of the owner's playlists.
// The title is left unchanged when the playlist belongs to someone else.
func (s *Service) Rename(ctx context.Context, ownerUserID int64, id uuid.UUID, newTitle string) (*Playlist, error) {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if _, err := s.owned(ctx, ownerUserID, id); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdateTitle(ctx, id, newTitle)
	if err != nil {
		return nil, fmt.Errorf("renaming playlist: %w", err)
	}
	return p, nil
}

// Delete removes one of the owner's playlists. Deleting an ID that does not
// exist succeeds; existed reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, ownerUserID int64, id uuid.UUID) (existed bool, err error) {
	_, err = s.owned(ctx, ownerUserID, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("delete of missing playlist", "playlist_id", id, "owner", ownerUserID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("playlist already deleted", "playlist_id", id, "owner", ownerUserID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting playlist: %w", err)
	}

	s.logger.Info("playlist deleted", "playlist_id", id, "owner", ownerUserID)
	return true, nil
}

// Current returns the owner's most recently saved playlist, or nil when the
// owner has none.
func (s *Service) Current(ctx context.Context, ownerUserID int64) (*Playlist, error) {
	p, err := s.repo.LatestForOwner(ctx, ownerUserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting current playlist: %w", err)
	}
	return p, nil
}

// Get returns one of the owner's playlists by ID.
func (s *Service) Get(ctx context.Context, ownerUserID int64, id uuid.UUID) (*Playlist, error) {
	return s.owned(ctx, ownerUserID, id)
}

// owned loads a playlist and checks it belongs to ownerUserID.
func (s *Service) owned(ctx context.Context, ownerUserID int64, id uuid.UUID) (*Playlist, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("loading playlist: %w", err)
	}
	if p.OwnerUserID != ownerUserID {
		s.logger.Warn("playlist ownership mismatch", "playlist_id", id, "owner", p.OwnerUserID, "caller", ownerUserID)
		return nil, ErrForbidden
	}
	return p, nil
}

func validate(ownerUserID int64, tracks []Track) error {
	if ownerUserID == 0 {
		return fmt.Errorf("%w: owner is required", ErrInvalid)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w: at least one track is required", ErrInvalid)
	}
	for i, t := range tracks {
		if t.SpotifyID == "" {
			return fmt.Errorf("%w: track %d has no spotify id", ErrInvalid, i)
		}
	}
	return nil
}
