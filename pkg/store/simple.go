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
	"strings"
	"sync"
	"time"
)

var _ Provider = (*simpleCache)(nil)

// simpleCache provides a minimal in-memory store. It is unbounded, never
// evicts, and ignores TTLs. Meant for tests and small embeds, not for
// production use.
type simpleCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// SimpleOptions provides options that can be used to configure the simple
// cache.
type SimpleOptions struct {
	// InitialCapacity controls the initial capacity of the store.
	InitialCapacity int
}

// NewSimpleCache creates a new simple cache with given options.
func NewSimpleCache(opts *SimpleOptions) (Provider, error) {
	if opts == nil {
		opts = &SimpleOptions{}
	}
	return &simpleCache{
		entries: make(map[string][]byte, opts.InitialCapacity),
	}, nil
}

// Get retrieves the value with the specified key.
func (c *simpleCache) Get(_ context.Context, key string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// Set sets a new value associated with the given key.
func (c *simpleCache) Set(key string, val []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = val
}

// Delete deletes the value associated with the given key.
func (c *simpleCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Keys returns a slice of the keys in the store.
func (c *simpleCache) Keys(_ context.Context, prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Purge removes all keys matching the wildcard pattern.
func (c *simpleCache) Purge(ctx context.Context, pattern string) error {
	if pattern == "" {
		c.mu.Lock()
		c.entries = make(map[string][]byte)
		c.mu.Unlock()
		return nil
	}
	r, err := compileWildcard(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if r.MatchString(k) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Size returns the number of entries currently in the store.
func (c *simpleCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
