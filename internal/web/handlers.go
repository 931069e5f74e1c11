package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-playlist-sessions/internal/api"
	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
	"github.com/justestif/go-playlist-sessions/internal/users"
)

// TrackSource looks up Spotify tracks with a session's credential.
type TrackSource interface {
	LookupTrack(ctx context.Context, cred auth.Credential, id string) (playlist.Track, error)
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	exchanger   *auth.Exchanger
	refresher   *auth.Refresher
	credentials auth.CredentialStore
	sessions    SessionManager
	cookies     *cookies
	users       users.Resolver
	profiles    map[auth.Provider]auth.ProfileFetcher
	playlists   *playlist.Service
	tracks      TrackSource
	limiter     *refreshLimiter
	sessionTTL  time.Duration
	frontendURL string
	logger      *log.Logger
}

// Login redirects to the provider's consent screen (GET /auth/{provider}).
func (h *Handlers) Login(p auth.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Generate state for CSRF protection
		state, err := auth.GenerateState()
		if err != nil {
			writeError(w, r, h.logger, fmt.Errorf("generating state: %w", err))
			return
		}

		url, err := h.exchanger.AuthURL(p, state)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		if err := h.cookies.setState(w, p, state); err != nil {
			writeError(w, r, h.logger, fmt.Errorf("setting state cookie: %w", err))
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}

// Callback finishes a provider login (GET /auth/{provider}/callback).
//
// The provider account is resolved to an application user. When the browser
// already has a session for that user, the new credential joins it, which is
// how one session ends up holding both Google and Spotify credentials.
func (h *Handlers) Callback(p auth.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stateErr := h.cookies.checkState(r, p)
		h.cookies.clearState(w, p)

		// Check for error from the provider
		if msg := r.URL.Query().Get("error"); msg != "" {
			writeError(w, r, h.logger, badRequest("%s sign-in failed: %s", p, msg))
			return
		}
		if stateErr != nil {
			writeError(w, r, h.logger, stateErr)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, r, h.logger, badRequest("missing authorization code"))
			return
		}

		cred, err := h.exchanger.ExchangeCode(ctx, p, code)
		if err != nil {
			writeError(w, r, h.logger, fmt.Errorf("exchanging %s code: %w", p, err))
			return
		}

		fetcher, ok := h.profiles[p]
		if !ok {
			writeError(w, r, h.logger, fmt.Errorf("%w: no profile fetcher for %s", auth.ErrUnknownProvider, p))
			return
		}
		profile, err := fetcher.FetchProfile(ctx, cred)
		if err != nil {
			writeError(w, r, h.logger, authError(p, fmt.Errorf("fetching %s profile: %w", p, err)))
			return
		}

		current, err := h.loadSession(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		var linkTo int64
		if current != nil {
			linkTo = current.UserID
		}

		user, err := h.users.Resolve(ctx, profile, linkTo)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		session := current
		if session == nil || session.UserID != user.ID {
			if current != nil {
				h.endSession(ctx, current.ID)
			}
			session, err = h.sessions.Create(ctx, user.ID)
			if err != nil {
				writeError(w, r, h.logger, fmt.Errorf("creating session: %w", err))
				return
			}
		}

		if err := h.credentials.Put(ctx, session.ID, cred); err != nil {
			writeError(w, r, h.logger, fmt.Errorf("storing %s credential: %w", p, err))
			return
		}
		if err := h.cookies.setSession(w, session); err != nil {
			writeError(w, r, h.logger, fmt.Errorf("setting session cookie: %w", err))
			return
		}

		h.logger.Info("signed in", "provider", p, "user", user.ID)
		http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
	}
}

// Logout destroys the session and its credentials (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if session != nil {
		h.endSession(r.Context(), session.ID)
	}

	h.cookies.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) endSession(ctx context.Context, id string) {
	if err := h.credentials.ClearAll(ctx, id); err != nil {
		h.logger.Error("clearing session credentials", "err", err)
	}
	if err := h.sessions.Delete(ctx, id); err != nil {
		h.logger.Error("deleting session", "err", err)
	}
	h.forgetSession(id)
}

// forgetSession drops the in-memory state kept per session.
func (h *Handlers) forgetSession(id string) {
	h.playlists.Titles().Forget(id)
	h.limiter.forget(id)
}

// sweep removes per-session state that outlived any session. Sessions do
// not slide, so state untouched for a full session TTL belongs to an
// expired session.
func (h *Handlers) sweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-h.sessionTTL)
	titles := h.playlists.Titles().Sweep(cutoff)
	limiters := h.limiter.sweep(cutoff)

	var sessions int64
	if expirer, ok := h.sessions.(sessionExpirer); ok {
		n, err := expirer.DeleteExpired(ctx)
		if err != nil {
			h.logger.Error("deleting expired sessions", "err", err)
		}
		sessions = n
	}

	if titles+limiters > 0 || sessions > 0 {
		h.logger.Debug("swept expired session state", "sessions", sessions, "titles", titles, "limiters", limiters)
	}
}

// SpotifyToken returns the session's live Spotify token (GET /auth/spotify/token).
// RequireProvider has already refreshed it when needed.
func (h *Handlers) SpotifyToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tokenResponse(credentialFrom(r.Context())))
}

// ForceRefresh refreshes the Spotify token regardless of its expiry
// (GET /auth/spotify/refresh-token).
func (h *Handlers) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if !h.limiter.allow(session.ID) {
		writeError(w, r, h.logger, errRateLimited)
		return
	}

	cred, err := h.refresher.ForceRefresh(r.Context(), session.ID, auth.ProviderSpotify)
	if err != nil {
		writeError(w, r, h.logger, authError(auth.ProviderSpotify, err))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(cred))
}

// Me describes the current session (GET /me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	user, err := h.users.Get(r.Context(), session.UserID)
	if errors.Is(err, users.ErrNotFound) {
		writeError(w, r, h.logger, errNotSignedIn)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	providers, err := h.credentials.Providers(r.Context(), session.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.String()
	}

	writeJSON(w, http.StatusOK, api.Me{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Providers:   names,
	})
}

func tokenResponse(cred auth.Credential) api.Token {
	resp := api.Token{AccessToken: cred.AccessToken}
	if !cred.ExpiresAt.IsZero() {
		exp := cred.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}
