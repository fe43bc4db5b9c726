// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ Provider = (*Cached)(nil)

// Cached is the two-tiered store, adding a local caching layer on top of a
// Provider.
type Cached struct {
	// inner is the tier-two store (remote, network).
	inner Provider

	// outer is the tier-one store (local, in-memory).
	outer Provider

	// name is the layered store name.
	name string

	// ttl is the default TTL for locally cached items.
	ttl time.Duration

	mu sync.Mutex
}

// NewCached adds a caching layer on top of a store Provider (typically a
// remote store) and wraps it with a local in-memory store. Items are always
// written to both tiers. Fetches are only satisfied by the underlying remote
// store if the item does not exist locally. The local tier evicts items by
// its capacity and lifetime constraints.
func NewCached(cache Provider, name string, ttl time.Duration, config MemoryConfig) (*Cached, error) {
	config.Sanitize()
	if config.MaxItemSize > config.MaxSize {
		return nil, fmt.Errorf("max item size (%v) must not exceed overall cache size (%v)",
			config.MaxItemSize, config.MaxSize)
	}

	local, err := NewInMemoryCache(MemoryConfig{
		MaxSize:     config.MaxSize,
		MaxItemSize: config.MaxItemSize,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		inner: cache,
		outer: local,
		ttl:   ttl,
		name:  "layered-" + name,
	}, nil
}

// Get retrieves an element based on a key, returning nil if the element does
// not exist in either tier.
func (c *Cached) Get(ctx context.Context, key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val := c.outer.Get(ctx, key); val != nil {
		return val
	}
	val := c.inner.Get(ctx, key)
	if val != nil {
		c.outer.Set(key, val, c.ttl)
	}
	return val
}

// Set adds an element to both tiers.
func (c *Cached) Set(key string, value []byte, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outer.Set(key, value, ttl)
}

// Delete deletes an element in both tiers.
func (c *Cached) Delete(ctx context.Context, key string) bool {
	c.mu.Lock()
	c.outer.Delete(ctx, key)
	c.mu.Unlock()
	return c.inner.Delete(ctx, key)
}

// Keys returns a slice of keys, always satisfied by the inner tier.
func (c *Cached) Keys(ctx context.Context, prefix string) []string {
	return c.inner.Keys(ctx, prefix)
}

// Purge removes matching keys from both tiers.
func (c *Cached) Purge(ctx context.Context, pattern string) error {
	c.mu.Lock()
	if err := c.outer.Purge(ctx, pattern); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	return c.inner.Purge(ctx, pattern)
}

// Size returns the number of entries in the inner tier.
func (c *Cached) Size() int {
	return len(c.inner.Keys(context.Background(), ""))
}
