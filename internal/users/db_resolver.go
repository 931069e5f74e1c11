package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/db"
)

// DBResolver resolves users against PostgreSQL.
type DBResolver struct {
	database *db.DB
}

// NewDBResolver creates a database-backed resolver.
func NewDBResolver(database *db.DB) *DBResolver {
	return &DBResolver{database: database}
}

// Resolve implements Resolver.
func (r *DBResolver) Resolve(ctx context.Context, profile auth.Profile, linkTo int64) (User, error) {
	if profile.ID == "" {
		return User{}, fmt.Errorf("resolving user: %s profile has no id", profile.Provider)
	}
	repo := r.database.Users()

	existing, err := repo.FindByIdentity(ctx, string(profile.Provider), profile.ID)
	if err == nil {
		return fromDB(existing), nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return User{}, err
	}

	identity := &db.Identity{
		Provider:       string(profile.Provider),
		ProviderUserID: profile.ID,
	}

	if linkTo != 0 {
		identity.UserID = linkTo
		if err := repo.LinkIdentity(ctx, identity); err != nil {
			return User{}, fmt.Errorf("linking %s account: %w", profile.Provider, err)
		}
		// A concurrent login may have linked the account first; the stored
		// owner wins.
		return r.Get(ctx, identity.UserID)
	}

	user := &db.User{DisplayName: profile.DisplayName, Email: profile.Email}
	if err := repo.CreateWithIdentity(ctx, user, identity); err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return fromDB(user), nil
}

// Get implements Resolver.
func (r *DBResolver) Get(ctx context.Context, id int64) (User, error) {
	u, err := r.database.Users().Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return fromDB(u), nil
}

func fromDB(u *db.User) User {
	return User{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

var _ Resolver = (*DBResolver)(nil)
