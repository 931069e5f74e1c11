package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRefresher implements TokenRefresher for testing.
type fakeRefresher struct {
	calls atomic.Int32
	cred  Credential
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, p Provider, refreshToken string) (Credential, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Credential{}, f.err
	}
	cred := f.cred
	cred.Provider = p
	return cred, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRefresher(store CredentialStore, ex TokenRefresher) *Refresher {
	return NewRefresher(store, ex,
		WithClock(func() time.Time { return testNow }),
		WithExpiryMargin(30*time.Second),
	)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		cred  Credential
		found bool
		want  State
	}{
		{"absent", Credential{}, false, StateNoCredential},
		{"valid", Credential{AccessToken: "a", ExpiresAt: testNow.Add(time.Hour)}, true, StateValid},
		{"no expiry reported", Credential{AccessToken: "a"}, true, StateValid},
		{"within margin", Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: testNow.Add(10 * time.Second)}, true, StateExpiredRefreshable},
		{"exactly at margin", Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: testNow.Add(30 * time.Second)}, true, StateExpiredRefreshable},
		{"past expiry refreshable", Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: testNow.Add(-5 * time.Second)}, true, StateExpiredRefreshable},
		{"past expiry unrefreshable", Credential{AccessToken: "a", ExpiresAt: testNow.Add(-5 * time.Second)}, true, StateExpiredUnrefreshable},
		{"empty access token", Credential{RefreshToken: "r"}, true, StateExpiredRefreshable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.cred, tt.found, testNow, 30*time.Second)
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefresher_NoCredential(t *testing.T) {
	ex := &fakeRefresher{}
	r := newTestRefresher(NewMemoryCredentialStore(), ex)

	_, err := r.Ensure(context.Background(), "sess", ProviderSpotify)
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("Ensure() error = %v, want ErrNoCredential", err)
	}
	if ex.calls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", ex.calls.Load())
	}
}

func TestRefresher_ValidPassesThrough(t *testing.T) {
	store := NewMemoryCredentialStore()
	stored := Credential{Provider: ProviderSpotify, AccessToken: "live", RefreshToken: "r", ExpiresAt: testNow.Add(time.Hour)}
	_ = store.Put(context.Background(), "sess", stored)
	ex := &fakeRefresher{}

	cred, err := newTestRefresher(store, ex).Ensure(context.Background(), "sess", ProviderSpotify)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if cred != stored {
		t.Errorf("Ensure() = %+v, want stored credential unchanged", cred)
	}
	if ex.calls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", ex.calls.Load())
	}
}

func TestRefresher_ExpiredRefreshable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	_ = store.Put(ctx, "sess", Credential{
		Provider:     ProviderSpotify,
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    testNow.Add(-5 * time.Second),
		Scope:        "streaming",
	})
	ex := &fakeRefresher{cred: Credential{AccessToken: "fresh", ExpiresAt: testNow.Add(time.Hour)}}

	cred, err := newTestRefresher(store, ex).Ensure(ctx, "sess", ProviderSpotify)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", ex.calls.Load())
	}
	if cred.AccessToken != "fresh" {
		t.Errorf("AccessToken = %q, want fresh", cred.AccessToken)
	}

	stored, ok, _ := store.Get(ctx, "sess", ProviderSpotify)
	if !ok {
		t.Fatal("credential missing from store after refresh")
	}
	if stored.AccessToken != "fresh" || !stored.ExpiresAt.After(testNow) {
		t.Errorf("stored = %+v, want fresh token expiring in the future", stored)
	}
	if stored.RefreshToken != "refresh-1" {
		t.Errorf("stored RefreshToken = %q, want original kept", stored.RefreshToken)
	}
	if stored.Scope != "streaming" {
		t.Errorf("stored Scope = %q, want original kept", stored.Scope)
	}
}

func TestRefresher_ExpiredUnrefreshableIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	_ = store.Put(ctx, "sess", Credential{
		Provider:    ProviderGoogle,
		AccessToken: "stale",
		ExpiresAt:   testNow.Add(-time.Minute),
	})
	ex := &fakeRefresher{}
	r := newTestRefresher(store, ex)

	for i := 0; i < 3; i++ {
		_, err := r.Ensure(ctx, "sess", ProviderGoogle)
		if !errors.Is(err, ErrExpiredUnrefreshable) {
			t.Fatalf("attempt %d: Ensure() error = %v, want ErrExpiredUnrefreshable", i, err)
		}
	}
	if ex.calls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", ex.calls.Load())
	}
}

func TestRefresher_InvalidGrantClearsCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	_ = store.Put(ctx, "sess", Credential{
		Provider:     ProviderSpotify,
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    testNow.Add(-time.Minute),
	})
	ex := &fakeRefresher{err: ErrInvalidGrant}
	r := newTestRefresher(store, ex)

	_, err := r.Ensure(ctx, "sess", ProviderSpotify)
	if !errors.Is(err, ErrExpiredUnrefreshable) {
		t.Errorf("Ensure() error = %v, want ErrExpiredUnrefreshable", err)
	}
	if !errors.Is(err, ErrInvalidGrant) {
		t.Errorf("Ensure() error = %v, want it to wrap ErrInvalidGrant", err)
	}
	if _, ok, _ := store.Get(ctx, "sess", ProviderSpotify); ok {
		t.Error("revoked credential still stored")
	}

	// The next request sees no credential at all and makes no call.
	_, err = r.Ensure(ctx, "sess", ProviderSpotify)
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("second Ensure() error = %v, want ErrNoCredential", err)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", ex.calls.Load())
	}
}

func TestRefresher_TransientFailureKeepsCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	original := Credential{
		Provider:     ProviderSpotify,
		AccessToken:  "stale",
		RefreshToken: "r",
		ExpiresAt:    testNow.Add(-time.Minute),
	}
	_ = store.Put(ctx, "sess", original)
	ex := &fakeRefresher{err: ErrNetwork}

	_, err := newTestRefresher(store, ex).Ensure(ctx, "sess", ProviderSpotify)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Ensure() error = %v, want ErrNetwork", err)
	}
	stored, ok, _ := store.Get(ctx, "sess", ProviderSpotify)
	if !ok || stored != original {
		t.Errorf("stored = %+v, want original untouched", stored)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1 (no automatic retry)", ex.calls.Load())
	}
}

func TestRefresher_ForceRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credential is refreshed anyway", func(t *testing.T) {
		store := NewMemoryCredentialStore()
		_ = store.Put(ctx, "sess", Credential{Provider: ProviderSpotify, AccessToken: "live", RefreshToken: "r", ExpiresAt: testNow.Add(time.Hour)})
		ex := &fakeRefresher{cred: Credential{AccessToken: "forced", ExpiresAt: testNow.Add(2 * time.Hour)}}

		cred, err := newTestRefresher(store, ex).ForceRefresh(ctx, "sess", ProviderSpotify)
		if err != nil {
			t.Fatalf("ForceRefresh() error = %v", err)
		}
		if cred.AccessToken != "forced" || ex.calls.Load() != 1 {
			t.Errorf("got %q after %d calls, want forced after 1", cred.AccessToken, ex.calls.Load())
		}
	})

	t.Run("no refresh token", func(t *testing.T) {
		store := NewMemoryCredentialStore()
		_ = store.Put(ctx, "sess", Credential{Provider: ProviderSpotify, AccessToken: "live", ExpiresAt: testNow.Add(time.Hour)})
		ex := &fakeRefresher{}

		_, err := newTestRefresher(store, ex).ForceRefresh(ctx, "sess", ProviderSpotify)
		if !errors.Is(err, ErrExpiredUnrefreshable) {
			t.Errorf("ForceRefresh() error = %v, want ErrExpiredUnrefreshable", err)
		}
		if ex.calls.Load() != 0 {
			t.Errorf("refresh calls = %d, want 0", ex.calls.Load())
		}
	})

	t.Run("absent", func(t *testing.T) {
		_, err := newTestRefresher(NewMemoryCredentialStore(), &fakeRefresher{}).ForceRefresh(ctx, "sess", ProviderGoogle)
		if !errors.Is(err, ErrNoCredential) {
			t.Errorf("ForceRefresh() error = %v, want ErrNoCredential", err)
		}
	})
}

func TestRefresher_ConcurrentRequestsMayBothRefresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	_ = store.Put(ctx, "sess", Credential{
		Provider:     ProviderSpotify,
		AccessToken:  "stale",
		RefreshToken: "r",
		ExpiresAt:    testNow.Add(-time.Minute),
	})
	ex := &fakeRefresher{cred: Credential{AccessToken: "fresh", ExpiresAt: testNow.Add(time.Hour)}}
	r := newTestRefresher(store, ex)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := r.Ensure(ctx, "sess", ProviderSpotify)
			if err == nil && cred.AccessToken != "fresh" {
				err = errors.New("stale token returned")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Ensure() error = %v", err)
		}
	}
	if n := ex.calls.Load(); n < 1 || n > 4 {
		t.Errorf("refresh calls = %d, want between 1 and 4", n)
	}
	stored, _, _ := store.Get(ctx, "sess", ProviderSpotify)
	if stored.AccessToken != "fresh" {
		t.Errorf("stored AccessToken = %q, want fresh", stored.AccessToken)
	}
}
