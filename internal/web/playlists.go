package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justestif/go-playlist-sessions/internal/api"
	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
)

// DraftPlaylist builds an unsaved playlist (POST /draft-playlist).
func (h *Handlers) DraftPlaylist(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	var req api.DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.UserID != 0 && req.UserID != session.UserID {
		writeError(w, r, h.logger, playlist.ErrForbidden)
		return
	}

	p, err := h.playlists.Draft(req.UserID, api.ToTracks(req.Tracks))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromPlaylist(p))
}

// SavePlaylist persists a playlist (POST /save-playlist).
func (h *Handlers) SavePlaylist(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	var req api.SaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.UserID != 0 && req.UserID != session.UserID {
		writeError(w, r, h.logger, playlist.ErrForbidden)
		return
	}

	p, err := h.playlists.Save(r.Context(), session.ID, req.UserID, req.Title, api.ToTracks(req.Tracks))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromPlaylist(p))
}

// CurrentPlaylist returns a user's current playlist (GET /myplaylist/{id}).
func (h *Handlers) CurrentPlaylist(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, h.logger, badRequest("invalid user id"))
		return
	}
	if userID != session.UserID {
		writeError(w, r, h.logger, playlist.ErrForbidden)
		return
	}

	p, err := h.playlists.Current(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CurrentPlaylist{Playlist: api.FromPlaylist(p)})
}

// GetPlaylist returns one of the user's playlists (GET /playlists/{id}).
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playlistID(w, r)
	if !ok {
		return
	}

	p, err := h.playlists.Get(r.Context(), sessionFrom(r.Context()).UserID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromPlaylist(p))
}

// RenamePlaylist changes a playlist's title (PUT /myplaylist/{id}).
func (h *Handlers) RenamePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playlistID(w, r)
	if !ok {
		return
	}

	var req api.RenameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.playlists.Rename(r.Context(), sessionFrom(r.Context()).UserID, id, req.NewTitle)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromPlaylist(p))
}

// DeletePlaylist removes a playlist (DELETE /myplaylist/{id}).
// Deleting a playlist that doesn't exist succeeds.
func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playlistID(w, r)
	if !ok {
		return
	}

	if _, err := h.playlists.Delete(r.Context(), sessionFrom(r.Context()).UserID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Track looks up a Spotify track (GET /tracks/{trackID}).
// A token Spotify rejects is dropped so the client signs in again.
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track, err := h.tracks.LookupTrack(ctx, credentialFrom(ctx), chi.URLParam(r, "trackID"))
	if errors.Is(err, auth.ErrExpiredUnrefreshable) {
		if clearErr := h.credentials.Clear(ctx, sessionFrom(ctx).ID, auth.ProviderSpotify); clearErr != nil {
			h.logger.Error("clearing rejected credential", "provider", auth.ProviderSpotify, "err", clearErr)
		}
	}
	if err != nil {
		writeError(w, r, h.logger, authError(auth.ProviderSpotify, err))
		return
	}
	writeJSON(w, http.StatusOK, api.FromTracks([]playlist.Track{track})[0])
}

func (h *Handlers) playlistID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, badRequest("invalid playlist id"))
		return uuid.Nil, false
	}
	return id, true
}
