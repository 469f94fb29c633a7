// Package dashboard serves the short-lived memoized statistics snapshot.
package dashboard

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a snapshot is served before recomputing.
const DefaultTTL = 30 * time.Second

// Source computes fresh statistics.
type Source interface {
	Load(ctx context.Context) (Stats, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Stats, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (Stats, error) { return f(ctx) }

// Cache holds a single snapshot for ttl. Concurrent recomputations are
// collapsed; when an Invalidate lands during a load, that load's result is
// returned to its callers but not stored.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	snapshot *Snapshot
	gen      uint64
	group    singleflight.Group
}

// NewCache constructs a Cache. Zero ttl uses DefaultTTL and a nil clock uses
// time.Now.
func NewCache(source Source, ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{source: source, ttl: ttl, now: now}
}

// Get returns the cached snapshot when it is younger than ttl and refresh
// is false. cached reports whether the snapshot came from the slot.
func (c *Cache) Get(ctx context.Context, refresh bool) (Snapshot, bool, error) {
	c.mu.Lock()
	if !refresh && c.snapshot != nil && c.now().Sub(c.snapshot.CapturedAt) < c.ttl {
		snap := *c.snapshot
		c.mu.Unlock()
		return snap, true, nil
	}
	gen := c.gen
	c.mu.Unlock()

	key := "stats:" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(key, func() (any, error) {
		stats, err := c.source.Load(context.WithoutCancel(ctx))
		if err != nil {
			return Snapshot{}, err
		}
		snap := Snapshot{Stats: stats, CapturedAt: c.now().UTC()}
		c.mu.Lock()
		if c.gen == gen {
			c.snapshot = &snap
		}
		c.mu.Unlock()
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, false, res.Err
		}
		return res.Val.(Snapshot), false, nil
	}
}

// Invalidate clears the slot so the next Get recomputes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.gen++
}
