package web

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/justestif/go-playlist-sessions/internal/auth"
)

const (
	sessionCookieName = "session_id"
	stateCookiePrefix = "oauth_state_"
	stateTTL          = 5 * time.Minute
)

// cookies signs and verifies the session and OAuth state cookies.
// Cookies carry identifiers only; credentials never leave the server.
type cookies struct {
	session *securecookie.SecureCookie
	state   *securecookie.SecureCookie
	ttl     time.Duration
	secure  bool
}

func newCookies(secret string, ttl time.Duration, secure bool) *cookies {
	key := []byte(secret)
	return &cookies{
		session: securecookie.New(key, nil).MaxAge(int(ttl.Seconds())),
		state:   securecookie.New(key, nil).MaxAge(int(stateTTL.Seconds())),
		ttl:     ttl,
		secure:  secure,
	}
}

// sessionID returns the verified session ID from the request.
func (c *cookies) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	var id string
	if err := c.session.Decode(sessionCookieName, cookie.Value, &id); err != nil {
		return "", false
	}
	return id, id != ""
}

func (c *cookies) setSession(w http.ResponseWriter, session *Session) error {
	value, err := c.session.Encode(sessionCookieName, session.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(sessionCookieName, value, int(c.ttl.Seconds())))
	return nil
}

func (c *cookies) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(sessionCookieName, "", -1))
}

func (c *cookies) setState(w http.ResponseWriter, p auth.Provider, state string) error {
	name := stateCookiePrefix + string(p)
	value, err := c.state.Encode(name, state)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(name, value, int(stateTTL.Seconds())))
	return nil
}

// checkState verifies the callback's state against the login cookie.
func (c *cookies) checkState(r *http.Request, p auth.Provider) error {
	name := stateCookiePrefix + string(p)
	cookie, err := r.Cookie(name)
	if err != nil {
		return auth.ErrStateMismatch
	}
	var want string
	if err := c.state.Decode(name, cookie.Value, &want); err != nil {
		return auth.ErrStateMismatch
	}
	if got := r.URL.Query().Get("state"); got == "" || got != want {
		return auth.ErrStateMismatch
	}
	return nil
}

func (c *cookies) clearState(w http.ResponseWriter, p auth.Provider) {
	http.SetCookie(w, c.cookie(stateCookiePrefix+string(p), "", -1))
}

func (c *cookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
