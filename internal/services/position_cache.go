package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"folio/internal/costbasis"
)

// PositionInvalidator drops cached positions for the given assets.
type PositionInvalidator interface {
	Invalidate(assetIDs ...string)
}

// PositionCache holds replayed positions per asset. Every asset carries a
// generation counter bumped by Invalidate; a replay may only publish its
// result if the generation it started from is still current, so a replay
// racing with a mutation can never resurrect stale state.
type PositionCache struct {
	entries *cache.Cache

	mu    sync.Mutex
	epoch uint64
	gens  map[string]uint64
}

// Generation identifies the cache state a replay started from.
type Generation struct {
	epoch uint64
	n     uint64
}

// NewPositionCache creates a cache whose entries expire after ttl. A zero
// ttl keeps entries until they are invalidated.
func NewPositionCache(ttl time.Duration) *PositionCache {
	expiry, cleanup := ttl, 2*ttl
	if ttl <= 0 {
		expiry, cleanup = cache.NoExpiration, 0
	}
	return &PositionCache{
		entries: cache.New(expiry, cleanup),
		gens:    make(map[string]uint64),
	}
}

// Get returns the cached position, if any. It never waits on a replay.
func (c *PositionCache) Get(assetID string) (*costbasis.Position, bool) {
	v, ok := c.entries.Get(assetID)
	if !ok {
		return nil, false
	}
	return v.(*costbasis.Position), true
}

// Generation returns the current generation of an asset.
func (c *PositionCache) Generation(assetID string) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Generation{epoch: c.epoch, n: c.gens[assetID]}
}

// Key renders the generation for use in singleflight keys.
func (g Generation) Key(assetID string) string {
	return fmt.Sprintf("%s#%d.%d", assetID, g.epoch, g.n)
}

// StoreIfCurrent publishes pos unless the asset was invalidated since gen
// was read. It reports whether the position was stored.
func (c *PositionCache) StoreIfCurrent(assetID string, gen Generation, pos *costbasis.Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != gen.epoch || c.gens[assetID] != gen.n {
		return false
	}
	c.entries.SetDefault(assetID, pos)
	return true
}

// Invalidate drops the assets' entries and bumps their generations.
func (c *PositionCache) Invalidate(assetIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range assetIDs {
		c.gens[id]++
		c.entries.Delete(id)
	}
}

// InvalidateAll drops every entry.
func (c *PositionCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries.Flush()
}
