package playlist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// failingRepository fails Create while fail is set.
type failingRepository struct {
	*MemoryRepository
	fail atomic.Bool
}

var errStoreDown = errors.New("store down")

func (r *failingRepository) Create(ctx context.Context, p *Playlist) error {
	if r.fail.Load() {
		return errStoreDown
	}
	return r.MemoryRepository.Create(ctx, p)
}

func TestService_ConcurrentSavesGetDistinctTitles(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	const saves = 16
	titles := make(chan string, saves)
	var wg sync.WaitGroup
	for i := 0; i < saves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Save(ctx, "sess", 42, "", []Track{t1})
			if err != nil {
				t.Errorf("Save() error = %v", err)
				return
			}
			titles <- p.Title
		}()
	}
	wg.Wait()
	close(titles)

	seen := make(map[string]bool)
	for title := range titles {
		if seen[title] {
			t.Errorf("title %q handed out twice", title)
		}
		seen[title] = true
	}
	if len(seen) != saves {
		t.Errorf("got %d distinct titles, want %d", len(seen), saves)
	}
}

func TestService_FailedStoreReleasesTitle(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepository{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo)

	if _, err := svc.Save(ctx, "sess", 42, "", []Track{t1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	repo.fail.Store(true)
	if _, err := svc.Save(ctx, "sess", 42, "", []Track{t1}); !errors.Is(err, errStoreDown) {
		t.Fatalf("Save() error = %v, want errStoreDown", err)
	}

	repo.fail.Store(false)
	p, err := svc.Save(ctx, "sess", 42, "", []Track{t1})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.Title != "Untitled 1" {
		t.Errorf("Title after failed save = %q, want Untitled 1", p.Title)
	}
}

func TestTitler_ReleaseAfterLaterReservation(t *testing.T) {
	titles := NewTitler()

	first := titles.Reserve("sess", "")
	second := titles.Reserve("sess", "")
	first.Release()

	if got := titles.Reserve("sess", "").Title; got != "Untitled 2" {
		t.Errorf("Reserve() = %q, want Untitled 2 so no placeholder repeats", got)
	}
	if second.Title != "Untitled 1" {
		t.Errorf("second = %q, want Untitled 1", second.Title)
	}
}

func TestTitler_UserTitleClaimsNothing(t *testing.T) {
	titles := NewTitler()

	r := titles.Reserve("sess", "  Road Trip ")
	if r.Title != "Road Trip" {
		t.Errorf("Title = %q, want Road Trip", r.Title)
	}
	r.Release()

	if got := titles.Reserve("sess", "").Title; got != DefaultTitle {
		t.Errorf("Reserve() = %q, want %q", got, DefaultTitle)
	}
}

func TestTitler_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	titles := NewTitler()
	titles.now = func() time.Time { return now }

	titles.Reserve("stale", "")
	now = now.Add(time.Hour)
	titles.Reserve("live", "")

	if n := titles.Sweep(now.Add(-time.Minute)); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if got := titles.Reserve("live", "").Title; got != "Untitled 1" {
		t.Errorf("live session title = %q, want its counter kept", got)
	}
	if got := titles.Reserve("stale", "").Title; got != DefaultTitle {
		t.Errorf("stale session title = %q, want a fresh counter", got)
	}
}
