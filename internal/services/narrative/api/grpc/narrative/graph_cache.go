package narrative

import (
	"context"
	"sync"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"golang.org/x/sync/singleflight"
)

const maxCachedRevisions = 256

// graphCache keeps approved revisions in memory. Approved revisions never
// change, so entries are never invalidated; concurrent misses for the same
// revision share one load.
type graphCache struct {
	load  func(ctx context.Context, revisionID string) (revision.Revision, error)
	group singleflight.Group

	mu         sync.RWMutex
	byRevision map[string]revision.Revision
}

func newGraphCache(load func(ctx context.Context, revisionID string) (revision.Revision, error)) *graphCache {
	return &graphCache{load: load, byRevision: make(map[string]revision.Revision)}
}

func (c *graphCache) Get(ctx context.Context, revisionID string) (revision.Revision, error) {
	c.mu.RLock()
	rev, ok := c.byRevision[revisionID]
	c.mu.RUnlock()
	if ok {
		return rev, nil
	}

	value, err, _ := c.group.Do(revisionID, func() (any, error) {
		loaded, err := c.load(ctx, revisionID)
		if err != nil {
			return revision.Revision{}, err
		}
		if loaded.Status == revision.StatusApproved {
			c.put(loaded)
		}
		return loaded, nil
	})
	if err != nil {
		return revision.Revision{}, err
	}
	return value.(revision.Revision), nil
}

func (c *graphCache) put(rev revision.Revision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byRevision) >= maxCachedRevisions {
		for key := range c.byRevision {
			delete(c.byRevision, key)
			break
		}
	}
	c.byRevision[rev.ID] = rev
}

func (c *graphCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byRevision)
}
