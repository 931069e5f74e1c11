// Package users maps provider accounts onto application-level users.
//
// A user is keyed by its own ID. Each provider account (provider plus the
// provider's user id) links to exactly one user, and a user may hold one
// account per provider.
package users

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/justestif/go-playlist-sessions/internal/auth"
)

// ErrNotFound is returned when no user has the requested ID.
var ErrNotFound = errors.New("user not found")

// User is an application-level identity.
type User struct {
	ID          int64
	DisplayName string
	Email       string
}

// Resolver finds or creates the user behind a provider profile.
type Resolver interface {
	// Resolve returns the user linked to profile. An unknown account is
	// linked to linkTo when it is non-zero, otherwise a new user is created.
	Resolve(ctx context.Context, profile auth.Profile, linkTo int64) (User, error)
	Get(ctx context.Context, id int64) (User, error)
}

type identityKey struct {
	provider auth.Provider
	id       string
}

// ============================================================================
// In-Memory Resolver (for development/testing)
// ============================================================================

// MemoryResolver keeps users and identities in process memory.
type MemoryResolver struct {
	mu         sync.Mutex
	nextID     int64
	users      map[int64]User
	identities map[identityKey]int64
}

// NewMemoryResolver creates an empty in-memory resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		users:      make(map[int64]User),
		identities: make(map[identityKey]int64),
	}
}

// Resolve implements Resolver.
func (r *MemoryResolver) Resolve(_ context.Context, profile auth.Profile, linkTo int64) (User, error) {
	if profile.ID == "" {
		return User{}, fmt.Errorf("resolving user: %s profile has no id", profile.Provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey{provider: profile.Provider, id: profile.ID}
	if id, ok := r.identities[key]; ok {
		return r.users[id], nil
	}

	if linkTo != 0 {
		u, ok := r.users[linkTo]
		if !ok {
			return User{}, fmt.Errorf("linking %s account: %w", profile.Provider, ErrNotFound)
		}
		r.identities[key] = u.ID
		return u, nil
	}

	r.nextID++
	u := User{ID: r.nextID, DisplayName: profile.DisplayName, Email: profile.Email}
	r.users[u.ID] = u
	r.identities[key] = u.ID
	return u, nil
}

// Get implements Resolver.
func (r *MemoryResolver) Get(_ context.Context, id int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

var _ Resolver = (*MemoryResolver)(nil)
