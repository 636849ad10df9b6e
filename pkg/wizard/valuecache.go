package wizard

import (
	"context"
	"slices"
	"sync"

	"github.com/TFMV/deltaflow/pkg/core"
	"golang.org/x/sync/singleflight"
)

type valueKey struct {
	fileID string
	column string
}

func (k valueKey) String() string {
	return k.fileID + "\x00" + k.column
}

// ValueCache memoizes unique column values per (fileID, column) for the
// lifetime of a session. It has no eviction. Concurrent misses on the same
// key share one fetch; failed fetches are not cached. A fetch that was in
// flight when its key was invalidated is returned to its callers but not
// stored.
type ValueCache struct {
	fetcher core.ValueFetcher
	limit   int

	mu          sync.Mutex
	entries     map[valueKey][]string
	generations map[valueKey]uint64
	group       singleflight.Group
}

// NewValueCache creates a cache in front of fetcher. A non-positive limit
// lets the backend apply its own default.
func NewValueCache(fetcher core.ValueFetcher, limit int) *ValueCache {
	return &ValueCache{
		fetcher:     fetcher,
		limit:       limit,
		entries:     make(map[valueKey][]string),
		generations: make(map[valueKey]uint64),
	}
}

// Get returns the unique values of column in fileID, fetching on a miss.
// The shared fetch is not cancelled with ctx; a cancelled caller stops
// waiting while other callers still receive the result.
func (c *ValueCache) Get(ctx context.Context, fileID, column string) ([]string, error) {
	key := valueKey{fileID: fileID, column: column}

	c.mu.Lock()
	if values, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return slices.Clone(values), nil
	}
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		c.mu.Lock()
		gen := c.generations[key]
		c.mu.Unlock()

		res, err := c.fetcher.ColumnUniqueValues(fetchCtx, fileID, column, c.limit)
		if err != nil {
			return nil, err
		}
		values := slices.Clone(res.Values)
		if values == nil {
			values = []string{}
		}
		c.mu.Lock()
		if c.generations[key] == gen {
			c.entries[key] = values
		}
		c.mu.Unlock()
		return values, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	}
}

// Invalidate drops the cached values of column in fileID. A fetch already
// in flight for the key will not repopulate it, and later misses start a
// new fetch.
func (c *ValueCache) Invalidate(fileID, column string) {
	key := valueKey{fileID: fileID, column: column}
	c.mu.Lock()
	delete(c.entries, key)
	c.generations[key]++
	c.mu.Unlock()
	c.group.Forget(key.String())
}

// Len returns the number of cached entries.
func (c *ValueCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
