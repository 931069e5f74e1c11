package playlist

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTitle is used when a playlist is saved without a name.
const DefaultTitle = "Untitled"

var defaultTitlePattern = regexp.MustCompile(`^` + DefaultTitle + `( \d+)?$`)

// IsDefaultTitle reports whether title is blank or a generated placeholder.
func IsDefaultTitle(title string) bool {
	title = strings.TrimSpace(title)
	return title == "" || defaultTitlePattern.MatchString(title)
}

// Titler hands out placeholder titles per editing session.
//
// The first default-named save in a session is "Untitled", the next
// "Untitled 1", and so on. Counters live in memory only; they keep one
// session from accumulating identical names and make no promise across
// sessions or restarts.
type Titler struct {
	mu     sync.Mutex
	counts map[string]*titleCount
	now    func() time.Time
}

type titleCount struct {
	next int
	seen time.Time
}

// NewTitler creates a Titler with no sessions.
func NewTitler() *Titler {
	return &Titler{counts: make(map[string]*titleCount), now: time.Now}
}

// Reservation is a title claimed for one save.
type Reservation struct {
	Title string

	titler  *Titler
	session string
	n       int // claimed placeholder number, -1 for a user-chosen title
}

// Reserve returns the title a save in session should use for the requested
// title. Non-default titles are returned trimmed and claim nothing. A
// placeholder is claimed at once, so overlapping saves never share one;
// call Release when the save fails.
func (t *Titler) Reserve(session, requested string) Reservation {
	if !IsDefaultTitle(requested) {
		return Reservation{Title: strings.TrimSpace(requested), n: -1}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counts[session]
	if !ok {
		c = &titleCount{}
		t.counts[session] = c
	}
	n := c.next
	c.next++
	c.seen = t.now()

	title := DefaultTitle
	if n > 0 {
		title += " " + strconv.Itoa(n)
	}
	return Reservation{Title: title, titler: t, session: session, n: n}
}

// Release gives the claimed placeholder back. It is a no-op when a later
// reservation already moved past it, which leaves a gap instead of a duplicate.
func (r Reservation) Release() {
	if r.n < 0 || r.titler == nil {
		return
	}
	t := r.titler
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.counts[r.session]; ok && c.next == r.n+1 {
		c.next = r.n
	}
}

// Forget drops the session's counter.
func (t *Titler) Forget(session string) {
	t.mu.Lock()
	delete(t.counts, session)
	t.mu.Unlock()
}

// Sweep drops counters not used since cutoff and returns how many it removed.
func (t *Titler) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for session, c := range t.counts {
		if c.seen.Before(cutoff) {
			delete(t.counts, session)
			removed++
		}
	}
	return removed
}
