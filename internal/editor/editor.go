// Package editor drives a playlist through loading, naming, saving and
// sharing on behalf of a client.
//
// An Editor runs one mutation at a time. While a save or delete is in
// flight every other mutating call fails with ErrBusy, which is how a UI
// keeps its save button disabled until the outcome is known.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/justestif/go-playlist-sessions/internal/playlist"
)

var (
	// ErrBusy is returned when a mutation is already in flight.
	ErrBusy = errors.New("another change is in progress")

	// ErrNotSaved is returned when an action needs a saved playlist.
	ErrNotSaved = errors.New("playlist has not been saved")

	// ErrBadTransition is returned when an action is not allowed in the current state.
	ErrBadTransition = errors.New("action not allowed in current state")
)

// State is the editor's screen state.
type State int

const (
	Loading State = iota
	Ready
	Failed
	EditingName
	Saving
	Sharing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	case EditingName:
		return "editing_name"
	case Saving:
		return "saving"
	case Sharing:
		return "sharing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the server the editor persists through.
type Backend interface {
	// Current returns the user's current playlist, or nil when there is none.
	Current(ctx context.Context, userID int64) (*playlist.Playlist, error)
	Save(ctx context.Context, userID int64, title string, tracks []playlist.Track) (*playlist.Playlist, error)
	Rename(ctx context.Context, id uuid.UUID, title string) (*playlist.Playlist, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// PlaybackToken returns a live Spotify access token for the player.
	PlaybackToken(ctx context.Context) (string, error)
}

// Editor is the client-side playlist state machine.
type Editor struct {
	backend Backend
	userID  int64

	mu       sync.Mutex
	state    State
	busy     bool
	playlist *playlist.Playlist
	name     string
	err      error
	playback Playback
	token    string
}

// New creates an editor for the user. It starts in Loading.
func New(backend Backend, userID int64) *Editor {
	return &Editor{backend: backend, userID: userID, state: Loading}
}

// Load shows draft when it is non-nil, otherwise the user's current
// playlist from the backend.
func (e *Editor) Load(ctx context.Context, draft *playlist.Playlist) error {
	e.mu.Lock()
	if e.state != Loading {
		e.mu.Unlock()
		return ErrBadTransition
	}
	e.mu.Unlock()

	p := draft
	if p == nil {
		var err error
		p, err = e.backend.Current(ctx, e.userID)
		if err != nil {
			e.mu.Lock()
			e.state, e.err = Failed, err
			e.mu.Unlock()
			return fmt.Errorf("loading playlist: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.playlist = clonePlaylist(p)
	e.state = Ready
	if p != nil {
		e.name = p.Title
	}
	return nil
}

// State returns the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether a mutation is in flight.
func (e *Editor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Err returns the last error surfaced to the user.
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Playlist returns a copy of the playlist shown, or nil.
func (e *Editor) Playlist() *playlist.Playlist {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clonePlaylist(e.playlist)
}

// Name returns the title being edited.
func (e *Editor) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// OpenName opens the name popup for a save or rename.
func (e *Editor) OpenName() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy {
		return ErrBusy
	}
	if e.state != Ready || e.playlist == nil {
		return ErrBadTransition
	}
	e.state = EditingName
	e.err = nil
	return nil
}

// SetName updates the title in the open popup.
func (e *Editor) SetName(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != EditingName {
		return ErrBadTransition
	}
	e.name = name
	return nil
}

// CloseName closes the popup without saving.
func (e *Editor) CloseName() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy {
		return ErrBusy
	}
	if e.state != EditingName {
		return ErrBadTransition
	}
	e.state = Ready
	if e.playlist != nil {
		e.name = e.playlist.Title
	}
	return nil
}

// Submit saves the playlist under the popup's name, or renames it when it
// was saved before. On failure the popup stays open with the error set.
func (e *Editor) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.state != EditingName {
		e.mu.Unlock()
		return ErrBadTransition
	}
	e.state, e.busy = Saving, true
	current := clonePlaylist(e.playlist)
	name := e.name
	e.mu.Unlock()

	var (
		saved *playlist.Playlist
		err   error
	)
	if current.Saved() {
		saved, err = e.backend.Rename(ctx, current.ID, name)
	} else {
		saved, err = e.backend.Save(ctx, e.userID, name, current.Tracks)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if err != nil {
		e.state, e.err = EditingName, err
		return fmt.Errorf("saving playlist: %w", err)
	}
	e.playlist = saved
	e.name = saved.Title
	e.state, e.err = Ready, nil
	return nil
}

// OpenShare shows the share options. Only saved playlists can be shared.
func (e *Editor) OpenShare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy {
		return ErrBusy
	}
	if e.state != Ready {
		return ErrBadTransition
	}
	if !e.playlist.Saved() {
		return ErrNotSaved
	}
	e.state = Sharing
	return nil
}

// CloseShare hides the share options.
func (e *Editor) CloseShare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Sharing {
		return ErrBadTransition
	}
	e.state = Ready
	return nil
}

// Delete removes the saved playlist. The editor is left empty in Ready.
func (e *Editor) Delete(ctx context.Context) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.state != Ready {
		e.mu.Unlock()
		return ErrBadTransition
	}
	if !e.playlist.Saved() {
		e.mu.Unlock()
		return ErrNotSaved
	}
	e.busy = true
	id := e.playlist.ID
	e.mu.Unlock()

	err := e.backend.Delete(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if err != nil {
		e.err = err
		return fmt.Errorf("deleting playlist: %w", err)
	}
	e.playlist, e.name, e.err = nil, "", nil
	e.playback = e.playback.Stop()
	return nil
}

// Play presses play on a track of the playlist. Starting a track fetches a
// live playback token first; if that fails playback is unchanged.
func (e *Editor) Play(ctx context.Context, trackID string) (Playback, error) {
	e.mu.Lock()
	if e.playlist == nil || !slices.ContainsFunc(e.playlist.Tracks, func(t playlist.Track) bool {
		return t.SpotifyID == trackID
	}) {
		pb := e.playback
		e.mu.Unlock()
		return pb, fmt.Errorf("%w: track %q is not in the playlist", ErrBadTransition, trackID)
	}
	next := e.playback.Select(trackID)
	e.mu.Unlock()

	var token string
	if next.State() == Playing {
		var err error
		token, err = e.backend.PlaybackToken(ctx)
		if err != nil {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.err = err
			return e.playback, fmt.Errorf("getting playback token: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Re-derive from the latest playback in case another press landed.
	e.playback = e.playback.Select(trackID)
	if token != "" {
		e.token = token
	}
	return e.playback, nil
}

// Playback returns the playback state.
func (e *Editor) Playback() Playback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playback
}

// Token returns the last playback token fetched.
func (e *Editor) Token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

func clonePlaylist(p *playlist.Playlist) *playlist.Playlist {
	if p == nil {
		return nil
	}
	c := *p
	c.Tracks = slices.Clone(p.Tracks)
	return &c
}
