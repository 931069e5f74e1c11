package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultExpiryMargin is how long before expiry a token is already treated as expired.
const DefaultExpiryMargin = 60 * time.Second

var (
	// ErrNoCredential is returned when the session never authenticated with the provider.
	ErrNoCredential = errors.New("no credential for provider")

	// ErrExpiredUnrefreshable is returned when the access token expired and no
	// usable refresh token exists. The user has to sign in again.
	ErrExpiredUnrefreshable = errors.New("credential expired and cannot be refreshed")
)

// State is the lifecycle state of a session's credential for one provider.
type State int

const (
	StateNoCredential State = iota
	StateValid
	StateExpiredRefreshable
	StateExpiredUnrefreshable
)

func (s State) String() string {
	switch s {
	case StateNoCredential:
		return "no_credential"
	case StateValid:
		return "valid"
	case StateExpiredRefreshable:
		return "expired_refreshable"
	case StateExpiredUnrefreshable:
		return "expired_unrefreshable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Classify determines the lifecycle state of a stored credential at now.
func Classify(cred Credential, found bool, now time.Time, margin time.Duration) State {
	switch {
	case !found:
		return StateNoCredential
	case !cred.ExpiredAt(now, margin):
		return StateValid
	case cred.Refreshable():
		return StateExpiredRefreshable
	default:
		return StateExpiredUnrefreshable
	}
}

// TokenRefresher exchanges a refresh token for a new credential.
type TokenRefresher interface {
	Refresh(ctx context.Context, p Provider, refreshToken string) (Credential, error)
}

// Refresher applies the refresh policy to a session's stored credential.
//
// Two requests racing on the same expired credential may both refresh it.
// Provider refresh endpoints tolerate the replay and the store keeps whichever
// write lands last, so no lock is held across the network call.
type Refresher struct {
	store     CredentialStore
	exchanger TokenRefresher
	margin    time.Duration
	now       func() time.Time
	logger    *log.Logger
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithExpiryMargin sets the early-expiry safety margin.
func WithExpiryMargin(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		r.margin = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.now = now
	}
}

// WithLogger sets the logger for refresh events.
func WithLogger(l *log.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = l
	}
}

// NewRefresher creates a Refresher over store using exchanger for refreshes.
func NewRefresher(store CredentialStore, exchanger TokenRefresher, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:     store,
		exchanger: exchanger,
		margin:    DefaultExpiryMargin,
		now:       time.Now,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure returns a usable credential for the session, refreshing and
// persisting it first when it has expired. The fresh credential is stored
// before Ensure returns, so callers downstream always read the new token.
func (r *Refresher) Ensure(ctx context.Context, sessionID string, p Provider) (Credential, error) {
	cred, found, err := r.store.Get(ctx, sessionID, p)
	if err != nil {
		return Credential{}, fmt.Errorf("loading %s credential: %w", p, err)
	}

	switch Classify(cred, found, r.now(), r.margin) {
	case StateNoCredential:
		return Credential{}, fmt.Errorf("%w: %s", ErrNoCredential, p)
	case StateValid:
		return cred, nil
	case StateExpiredUnrefreshable:
		return Credential{}, fmt.Errorf("%w: %s", ErrExpiredUnrefreshable, p)
	default:
		return r.refresh(ctx, sessionID, cred)
	}
}

// ForceRefresh refreshes the session's credential regardless of its expiry.
func (r *Refresher) ForceRefresh(ctx context.Context, sessionID string, p Provider) (Credential, error) {
	cred, found, err := r.store.Get(ctx, sessionID, p)
	if err != nil {
		return Credential{}, fmt.Errorf("loading %s credential: %w", p, err)
	}
	if !found {
		return Credential{}, fmt.Errorf("%w: %s", ErrNoCredential, p)
	}
	if !cred.Refreshable() {
		return Credential{}, fmt.Errorf("%w: %s", ErrExpiredUnrefreshable, p)
	}
	return r.refresh(ctx, sessionID, cred)
}

func (r *Refresher) refresh(ctx context.Context, sessionID string, cred Credential) (Credential, error) {
	fresh, err := r.exchanger.Refresh(ctx, cred.Provider, cred.RefreshToken)
	if errors.Is(err, ErrInvalidGrant) {
		r.logger.Warn("refresh token rejected, clearing credential", "provider", cred.Provider)
		if clearErr := r.store.Clear(ctx, sessionID, cred.Provider); clearErr != nil {
			r.logger.Error("clearing rejected credential", "provider", cred.Provider, "err", clearErr)
		}
		return Credential{}, fmt.Errorf("%w: %w", ErrExpiredUnrefreshable, err)
	}
	if err != nil {
		r.logger.Warn("token refresh failed", "provider", cred.Provider, "err", err)
		return Credential{}, err
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	if fresh.Scope == "" {
		fresh.Scope = cred.Scope
	}

	if err := r.store.Put(ctx, sessionID, fresh); err != nil {
		return Credential{}, fmt.Errorf("storing refreshed %s credential: %w", cred.Provider, err)
	}

	r.logger.Debug("token refreshed", "provider", cred.Provider, "expires_at", fresh.ExpiresAt)
	return fresh, nil
}
