package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/justestif/go-playlist-sessions/internal/api"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
)

// StatusError is returned when the server answers with a non-success status.
type StatusError struct {
	Status  int
	Message string
	Login   string // provider login path when re-authentication is required
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// HTTPBackend talks to the playlist server. The client must carry the
// session cookie, typically through a cookie jar.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend for the server at baseURL.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Current implements Backend.
func (b *HTTPBackend) Current(ctx context.Context, userID int64) (*playlist.Playlist, error) {
	var resp api.CurrentPlaylist
	if err := b.do(ctx, http.MethodGet, "/myplaylist/"+strconv.FormatInt(userID, 10), nil, &resp); err != nil {
		return nil, err
	}
	return api.ToPlaylist(resp.Playlist)
}

// Save implements Backend.
func (b *HTTPBackend) Save(ctx context.Context, userID int64, title string, tracks []playlist.Track) (*playlist.Playlist, error) {
	req := api.SaveRequest{Title: title, UserID: userID, Tracks: api.FromTracks(tracks)}
	var resp api.Playlist
	if err := b.do(ctx, http.MethodPost, "/save-playlist", req, &resp); err != nil {
		return nil, err
	}
	return api.ToPlaylist(&resp)
}

// Rename implements Backend.
func (b *HTTPBackend) Rename(ctx context.Context, id uuid.UUID, title string) (*playlist.Playlist, error) {
	var resp api.Playlist
	if err := b.do(ctx, http.MethodPut, "/myplaylist/"+id.String(), api.RenameRequest{NewTitle: title}, &resp); err != nil {
		return nil, err
	}
	return api.ToPlaylist(&resp)
}

// Delete implements Backend.
func (b *HTTPBackend) Delete(ctx context.Context, id uuid.UUID) error {
	return b.do(ctx, http.MethodDelete, "/myplaylist/"+id.String(), nil, nil)
}

// PlaybackToken implements Backend.
func (b *HTTPBackend) PlaybackToken(ctx context.Context) (string, error) {
	var resp api.Token
	if err := b.do(ctx, http.MethodGet, "/auth/spotify/token", nil, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var apiErr api.Error
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			statusErr.Message = apiErr.Error
			statusErr.Login = apiErr.Login
		}
		return statusErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}

var _ Backend = (*HTTPBackend)(nil)
