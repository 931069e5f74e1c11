package playlist

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores saved playlists.
type Repository interface {
	// Create assigns the playlist an ID and timestamps and stores it.
	Create(ctx context.Context, p *Playlist) error
	// Get returns ErrNotFound when no playlist has the ID.
	Get(ctx context.Context, id uuid.UUID) (*Playlist, error)
	// LatestForOwner returns the owner's most recently created playlist,
	// or ErrNotFound when the owner has none.
	LatestForOwner(ctx context.Context, ownerUserID int64) (*Playlist, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*Playlist, error)
	// Delete returns ErrNotFound when no playlist had the ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ============================================================================
// In-Memory Repository (for development/testing)
// ============================================================================

// MemoryRepository keeps playlists in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	playlists map[uuid.UUID]*memoryEntry
	seq       int
	now       func() time.Time
}

type memoryEntry struct {
	playlist Playlist
	seq      int
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		playlists: make(map[uuid.UUID]*memoryEntry),
		now:       time.Now,
	}
}

// Create stores a copy of p.
func (r *MemoryRepository) Create(_ context.Context, p *Playlist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	r.seq++
	r.playlists[p.ID] = &memoryEntry{playlist: clonePlaylist(*p), seq: r.seq}
	return nil
}

// Get returns a copy of the playlist with the ID.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Playlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := clonePlaylist(e.playlist)
	return &p, nil
}

// LatestForOwner returns the owner's most recently created playlist.
func (r *MemoryRepository) LatestForOwner(_ context.Context, ownerUserID int64) (*Playlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *memoryEntry
	for _, e := range r.playlists {
		if e.playlist.OwnerUserID != ownerUserID {
			continue
		}
		if latest == nil || e.seq > latest.seq {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	p := clonePlaylist(latest.playlist)
	return &p, nil
}

// UpdateTitle renames the playlist with the ID.
func (r *MemoryRepository) UpdateTitle(_ context.Context, id uuid.UUID, title string) (*Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.playlist.Title = title
	e.playlist.UpdatedAt = r.now()
	p := clonePlaylist(e.playlist)
	return &p, nil
}

// Delete removes the playlist with the ID.
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.playlists[id]; !ok {
		return ErrNotFound
	}
	delete(r.playlists, id)
	return nil
}

func clonePlaylist(p Playlist) Playlist {
	p.Tracks = slices.Clone(p.Tracks)
	return p
}

var _ Repository = (*MemoryRepository)(nil)
