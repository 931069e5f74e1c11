package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository handles provider credential database operations.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the credential a session holds for a provider.
func (r *CredentialRepository) Get(ctx context.Context, sessionID, provider string) (*Credential, error) {
	query := `
		SELECT session_id, provider, access_token, refresh_token, expires_at, scope, updated_at
		FROM provider_credentials
		WHERE session_id = $1 AND provider = $2
	`
	var cred Credential
	err := r.pool.QueryRow(ctx, query, sessionID, provider).Scan(
		&cred.SessionID,
		&cred.Provider,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.Scope,
		&cred.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	return &cred, nil
}

// Upsert writes a credential, replacing the access token, refresh token and
// expiry in a single statement.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *Credential) error {
	query := `
		INSERT INTO provider_credentials (session_id, provider, access_token, refresh_token, expires_at, scope, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (session_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		cred.SessionID,
		cred.Provider,
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt,
		cred.Scope,
	).Scan(&cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}
	return nil
}

// Delete removes one provider's credential from a session.
func (r *CredentialRepository) Delete(ctx context.Context, sessionID, provider string) error {
	query := `DELETE FROM provider_credentials WHERE session_id = $1 AND provider = $2`
	if _, err := r.pool.Exec(ctx, query, sessionID, provider); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

// DeleteForSession removes every credential a session holds.
func (r *CredentialRepository) DeleteForSession(ctx context.Context, sessionID string) error {
	query := `DELETE FROM provider_credentials WHERE session_id = $1`
	if _, err := r.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("deleting session credentials: %w", err)
	}
	return nil
}

// ListProviders returns the providers a session holds credentials for.
func (r *CredentialRepository) ListProviders(ctx context.Context, sessionID string) ([]string, error) {
	query := `
		SELECT provider
		FROM provider_credentials
		WHERE session_id = $1
		ORDER BY provider
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session providers: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}
