package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/go-playlist-sessions/internal/api"
	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
	"github.com/justestif/go-playlist-sessions/internal/spotify"
)

var (
	errNotSignedIn = errors.New("not signed in")
	errRateLimited = errors.New("too many refresh requests")
	errBadRequest  = errors.New("bad request")
)

// loginRequired marks an error that the client resolves by signing in with provider.
type loginRequired struct {
	provider auth.Provider
	err      error
}

func (e *loginRequired) Error() string { return e.err.Error() }
func (e *loginRequired) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a client-safe message. Server-side
// failures are logged with detail and answered generically.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func classifyError(err error) (int, api.Error) {
	var login *loginRequired
	switch {
	case errors.As(err, &login):
		return http.StatusUnauthorized, api.Error{
			Error: "sign in with " + string(login.provider) + " required",
			Login: "/auth/" + string(login.provider),
		}
	case errors.Is(err, errNotSignedIn):
		return http.StatusUnauthorized, api.Error{Error: "not signed in", Login: "/auth/" + string(auth.ProviderGoogle)}
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, api.Error{Error: "too many requests, try again later"}
	case errors.Is(err, auth.ErrStateMismatch):
		return http.StatusBadRequest, api.Error{Error: "login expired or was tampered with, start again"}
	case errors.Is(err, errBadRequest), errors.Is(err, playlist.ErrInvalid):
		return http.StatusBadRequest, api.Error{Error: err.Error()}
	case errors.Is(err, playlist.ErrForbidden):
		return http.StatusForbidden, api.Error{Error: "forbidden"}
	case errors.Is(err, playlist.ErrNotFound):
		return http.StatusNotFound, api.Error{Error: "playlist not found"}
	case errors.Is(err, spotify.ErrTrackNotFound):
		return http.StatusNotFound, api.Error{Error: "track not found"}
	case errors.Is(err, auth.ErrProviderRejected), errors.Is(err, auth.ErrNetwork):
		return http.StatusBadGateway, api.Error{Error: "provider unavailable, try again"}
	default:
		return http.StatusInternalServerError, api.Error{Error: "an unexpected error occurred"}
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}
