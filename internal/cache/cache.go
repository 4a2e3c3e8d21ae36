// Package cache implements the chain-aware, TTL-based quote cache that sits in
// front of the price resolver.
package cache

import (
	"sync"
	"time"

	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

// Entry wraps a quote with its expiry and the chain it was written for.
type Entry struct {
	Data      model.PriceQuote
	ExpiresAt time.Time
	ChainID   types.ChainID
}

// PriceCache is a TTL'd in-memory map of quotes keyed by name. An entry is
// invisible to lookups for a different chain even under the same key, which
// keeps prices from leaking across chains that share a symbol. Expired entries
// are deleted lazily on the read that discovers them; there is no sweep
// goroutine. The map is unbounded, acceptable because the key space is one
// entry per chain per tracked token.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL applied uniformly to every entry.
func New(ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PriceCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the cache's clock. Tests use it to step time.
func (c *PriceCache) WithClock(now func() time.Time) *PriceCache {
	c.now = now
	return c
}

// Get returns the cached quote for key, or nil when the entry is absent,
// expired, or was written for a different chain.
func (c *PriceCache) Get(key string, chainID types.ChainID) *model.PriceQuote {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if c.now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another reader may have replaced it.
		if current, ok := c.entries[key]; ok && c.now().After(current.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil
	}
	if entry.ChainID != chainID {
		return nil
	}

	quote := entry.Data
	return &quote
}

// Set stores a quote under key for the given chain. Pure overwrite.
func (c *PriceCache) Set(key string, quote model.PriceQuote, chainID types.ChainID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Data:      quote,
		ExpiresAt: c.now().Add(c.ttl),
		ChainID:   chainID,
	}
}

// Clear drops every entry. Exposed for operator use.
func (c *PriceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len reports the number of live entries, expired or not.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
