package auth

import (
	"context"
	"sync"
)

// CredentialStore holds provider credentials per session.
//
// Writes overwrite: the last Put for a (session, provider) pair wins. A session
// is driven by one client at a time, so no further arbitration is done here;
// refresh races are tolerated by the Refresher instead.
type CredentialStore interface {
	// Get returns the credential and true, or false when none is stored.
	Get(ctx context.Context, sessionID string, p Provider) (Credential, bool, error)
	Put(ctx context.Context, sessionID string, cred Credential) error
	Clear(ctx context.Context, sessionID string, p Provider) error
	ClearAll(ctx context.Context, sessionID string) error
	// Providers lists the providers the session holds credentials for.
	Providers(ctx context.Context, sessionID string) ([]Provider, error)
}

// ============================================================================
// In-Memory Credential Store (for development/testing)
// ============================================================================

// MemoryCredentialStore keeps credentials in process memory.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]map[Provider]Credential
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[string]map[Provider]Credential),
	}
}

// Get returns the stored credential for the session and provider.
func (s *MemoryCredentialStore) Get(_ context.Context, sessionID string, p Provider) (Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[sessionID][p]
	return cred, ok, nil
}

// Put stores cred, replacing any previous credential for the same provider.
func (s *MemoryCredentialStore) Put(_ context.Context, sessionID string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProvider, ok := s.creds[sessionID]
	if !ok {
		byProvider = make(map[Provider]Credential)
		s.creds[sessionID] = byProvider
	}
	byProvider[cred.Provider] = cred
	return nil
}

// Clear removes one provider's credential from the session.
func (s *MemoryCredentialStore) Clear(_ context.Context, sessionID string, p Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds[sessionID], p)
	return nil
}

// ClearAll removes every credential held by the session.
func (s *MemoryCredentialStore) ClearAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.creds, sessionID)
	s.mu.Unlock()
	return nil
}

// Providers lists the providers held by the session in declaration order.
func (s *MemoryCredentialStore) Providers(_ context.Context, sessionID string) ([]Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Provider
	for _, p := range Providers {
		if _, ok := s.creds[sessionID][p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)
