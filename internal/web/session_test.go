package web

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/justestif/go-playlist-sessions/internal/api"
	"github.com/justestif/go-playlist-sessions/internal/auth"
)

func (e *testEnv) limiterCount() int {
	l := e.server.handlers.limiter
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func TestSweepDropsStaleSessionState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	s, cookie := env.session(42)
	env.putSpotify(s.ID, auth.Credential{AccessToken: "live", RefreshToken: "refresh-token", ExpiresAt: time.Now().Add(time.Hour)})

	save := api.SaveRequest{UserID: 42, Tracks: []api.Track{{SpotifyID: "t1"}}}
	_ = env.do(http.MethodPost, "/save-playlist", cookie, save)
	_ = env.do(http.MethodGet, "/auth/spotify/refresh-token", cookie, nil)
	if env.limiterCount() != 1 {
		t.Fatalf("limiters = %d, want 1", env.limiterCount())
	}

	// Nothing is stale yet.
	env.server.handlers.sweep(ctx, time.Now())
	if env.limiterCount() != 1 {
		t.Errorf("limiters after early sweep = %d, want 1", env.limiterCount())
	}

	env.server.handlers.sweep(ctx, time.Now().Add(2*time.Hour))
	if env.limiterCount() != 0 {
		t.Errorf("limiters after sweep = %d, want 0", env.limiterCount())
	}
	resp := env.do(http.MethodPost, "/save-playlist", cookie, save)
	if p := decode[api.Playlist](t, resp); p.Title != "Untitled" {
		t.Errorf("title after sweep = %q, want the counter reset to Untitled", p.Title)
	}
}

func TestUnknownSessionForgetsState(t *testing.T) {
	env := newTestEnv(t)
	s, cookie := env.session(42)
	env.putSpotify(s.ID, auth.Credential{AccessToken: "live", RefreshToken: "refresh-token", ExpiresAt: time.Now().Add(time.Hour)})

	_ = env.do(http.MethodGet, "/auth/spotify/refresh-token", cookie, nil)
	if env.limiterCount() != 1 {
		t.Fatalf("limiters = %d, want 1", env.limiterCount())
	}

	_ = env.sessions.Delete(context.Background(), s.ID)

	resp := env.do(http.MethodGet, "/me", cookie, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if env.limiterCount() != 0 {
		t.Errorf("limiters = %d, want the ended session's limiter dropped", env.limiterCount())
	}
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	live, _ := store.Create(ctx, 1)
	stale, _ := store.Create(ctx, 2)
	store.mu.Lock()
	store.sessions[stale.ID].ExpiresAt = time.Now().Add(-time.Second)
	store.mu.Unlock()

	n, err := store.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired() = %d, %v; want 1", n, err)
	}
	if got, _ := store.Get(ctx, live.ID); got == nil {
		t.Error("live session removed")
	}
	store.mu.RLock()
	_, ok := store.sessions[stale.ID]
	store.mu.RUnlock()
	if ok {
		t.Error("expired session still stored")
	}
}
