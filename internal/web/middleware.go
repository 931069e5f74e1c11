package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/justestif/go-playlist-sessions/internal/auth"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	credentialKey
)

func sessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

func credentialFrom(ctx context.Context) auth.Credential {
	c, _ := ctx.Value(credentialKey).(auth.Credential)
	return c
}

// loadSession returns the request's session, or nil when it has none.
func (h *Handlers) loadSession(r *http.Request) (*Session, error) {
	id, ok := h.cookies.sessionID(r)
	if !ok {
		return nil, nil
	}
	session, err := h.sessions.Get(r.Context(), id)
	if err == nil && session == nil {
		// Expired or unknown: drop what was kept in memory for it.
		h.forgetSession(id)
	}
	return session, err
}

// RequireSession rejects requests without a live session and stores the
// session in the request context.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.loadSession(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if session == nil {
			writeError(w, r, h.logger, errNotSignedIn)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireProvider runs the token lifecycle for provider before the request
// proceeds. An expired credential is refreshed and stored first; a missing
// or unrefreshable one ends the request with a sign-in prompt.
func (h *Handlers) RequireProvider(p auth.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFrom(r.Context())
			if session == nil {
				writeError(w, r, h.logger, errNotSignedIn)
				return
			}

			cred, err := h.refresher.Ensure(r.Context(), session.ID, p)
			if err != nil {
				writeError(w, r, h.logger, authError(p, err))
				return
			}

			ctx := context.WithValue(r.Context(), credentialKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authError marks credential failures that need the user to sign in again.
func authError(p auth.Provider, err error) error {
	if errors.Is(err, auth.ErrNoCredential) || errors.Is(err, auth.ErrExpiredUnrefreshable) {
		return &loginRequired{provider: p, err: err}
	}
	return err
}

// refreshLimiter throttles forced refreshes per session.
type refreshLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	burst    int
	limiters map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newRefreshLimiter(every time.Duration, burst int) *refreshLimiter {
	return &refreshLimiter{
		every:    every,
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *refreshLimiter) allow(sessionID string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[sessionID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.limiters[sessionID] = entry
	}
	entry.seen = l.now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

func (l *refreshLimiter) forget(sessionID string) {
	l.mu.Lock()
	delete(l.limiters, sessionID)
	l.mu.Unlock()
}

// sweep drops limiters not used since cutoff.
func (l *refreshLimiter) sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, entry := range l.limiters {
		if entry.seen.Before(cutoff) {
			delete(l.limiters, id)
			removed++
		}
	}
	return removed
}
