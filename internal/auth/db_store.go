package auth

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/go-playlist-sessions/internal/db"
)

// ============================================================================
// Database-Backed Credential Store
// ============================================================================

// DBCredentialStore keeps credentials in PostgreSQL, keyed by session.
type DBCredentialStore struct {
	database *db.DB
}

// NewDBCredentialStore creates a database-backed credential store.
func NewDBCredentialStore(database *db.DB) *DBCredentialStore {
	return &DBCredentialStore{database: database}
}

// Get returns the stored credential for the session and provider.
func (s *DBCredentialStore) Get(ctx context.Context, sessionID string, p Provider) (Credential, bool, error) {
	row, err := s.database.Credentials().Get(ctx, sessionID, string(p))
	if errors.Is(err, db.ErrNotFound) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, err
	}

	cred := Credential{
		Provider:     p,
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Scope:        row.Scope,
	}
	if row.ExpiresAt != nil {
		cred.ExpiresAt = *row.ExpiresAt
	}
	return cred, true, nil
}

// Put upserts cred for the session.
func (s *DBCredentialStore) Put(ctx context.Context, sessionID string, cred Credential) error {
	var expiresAt *time.Time
	if !cred.ExpiresAt.IsZero() {
		t := cred.ExpiresAt
		expiresAt = &t
	}
	return s.database.Credentials().Upsert(ctx, &db.Credential{
		SessionID:    sessionID,
		Provider:     string(cred.Provider),
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    expiresAt,
		Scope:        cred.Scope,
	})
}

// Clear removes one provider's credential from the session.
func (s *DBCredentialStore) Clear(ctx context.Context, sessionID string, p Provider) error {
	return s.database.Credentials().Delete(ctx, sessionID, string(p))
}

// ClearAll removes every credential held by the session.
func (s *DBCredentialStore) ClearAll(ctx context.Context, sessionID string) error {
	return s.database.Credentials().DeleteForSession(ctx, sessionID)
}

// Providers lists the providers held by the session.
func (s *DBCredentialStore) Providers(ctx context.Context, sessionID string) ([]Provider, error) {
	names, err := s.database.Credentials().ListProviders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := ParseProvider(name)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

var _ CredentialStore = (*DBCredentialStore)(nil)
