package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles user and identity database operations.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, display_name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

// FindByIdentity returns the user linked to a provider account.
func (r *UserRepository) FindByIdentity(ctx context.Context, provider, providerUserID string) (*User, error) {
	query := `
		SELECT u.id, u.display_name, u.email, u.created_at, u.updated_at
		FROM users u
		JOIN user_identities i ON i.user_id = u.id
		WHERE i.provider = $1 AND i.provider_user_id = $2
	`
	var user User
	err := r.pool.QueryRow(ctx, query, provider, providerUserID).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by identity: %w", err)
	}
	return &user, nil
}

// CreateWithIdentity inserts a new user and its first identity in one transaction.
// The generated user ID is written back to user and identity.
func (r *UserRepository) CreateWithIdentity(ctx context.Context, user *User, identity *Identity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userQuery := `
		INSERT INTO users (display_name, email, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, userQuery, user.DisplayName, user.Email).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	identity.UserID = user.ID
	if err := insertIdentity(ctx, tx, identity); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LinkIdentity attaches a provider account to an existing user.
// Linking an account that is already linked keeps the original owner.
func (r *UserRepository) LinkIdentity(ctx context.Context, identity *Identity) error {
	return insertIdentity(ctx, r.pool, identity)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertIdentity(ctx context.Context, q rowQuerier, identity *Identity) error {
	query := `
		INSERT INTO user_identities (provider, provider_user_id, user_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider, provider_user_id) DO UPDATE SET
			provider = EXCLUDED.provider
		RETURNING user_id, created_at
	`
	err := q.QueryRow(ctx, query,
		identity.Provider,
		identity.ProviderUserID,
		identity.UserID,
	).Scan(&identity.UserID, &identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting identity: %w", err)
	}
	return nil
}
