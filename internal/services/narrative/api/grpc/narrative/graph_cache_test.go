package narrative

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
)

func TestGraphCacheKeepsApprovedRevisions(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	cache := newGraphCache(func(_ context.Context, revisionID string) (revision.Revision, error) {
		loads.Add(1)
		status := revision.StatusApproved
		if revisionID == "draft" {
			status = revision.StatusDraft
		}
		return revision.Revision{ID: revisionID, Status: status}, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), "approved"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := cache.Get(context.Background(), "approved"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := loads.Load(); got < 1 || got > 8 {
		t.Fatalf("loads = %d", got)
	}
	before := loads.Load()
	if _, err := cache.Get(context.Background(), "approved"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if loads.Load() != before {
		t.Fatal("expected cached approved revision")
	}

	for range 2 {
		if _, err := cache.Get(context.Background(), "draft"); err != nil {
			t.Fatalf("get draft: %v", err)
		}
	}
	if loads.Load() != before+2 {
		t.Fatalf("drafts should not be cached, loads = %d", loads.Load())
	}
	if cache.Len() != 1 {
		t.Fatalf("len = %d, want 1", cache.Len())
	}
}

func TestGraphCachePropagatesErrors(t *testing.T) {
	t.Parallel()

	cache := newGraphCache(func(context.Context, string) (revision.Revision, error) {
		return revision.Revision{}, storage.ErrNotFound
	})
	if _, err := cache.Get(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("len = %d, want 0", cache.Len())
	}
}

func TestGraphCacheEvictsWhenFull(t *testing.T) {
	t.Parallel()

	cache := newGraphCache(nil)
	for i := range maxCachedRevisions + 10 {
		cache.put(revision.Revision{ID: "rev-" + strconv.Itoa(i), Status: revision.StatusApproved})
	}
	if cache.Len() > maxCachedRevisions {
		t.Fatalf("len = %d, want at most %d", cache.Len(), maxCachedRevisions)
	}
}
