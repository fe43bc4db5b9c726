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
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

var _ Provider = (*memoryCache)(nil)

const (
	maxInt          = int(^uint(0) >> 1)
	sliceHeaderSize = 24
)

// memoryCache is the size-bounded in-memory store.
type memoryCache struct {
	mu sync.Mutex

	// inner is the actual LRU cache.
	inner *lru.Cache[string, []byte]

	// maxSizeBytes is the max bytes the store can hold.
	maxSizeBytes uint64

	// maxItemSizeBytes is the max size of a single item.
	maxItemSizeBytes uint64

	// curSize is the current store size in bytes.
	curSize uint64

	// defaultTTL is the item default ttl.
	defaultTTL time.Duration

	// expiry holds the expiration instant per item.
	expiry map[string]time.Time

	// ttlEviction specifies if TTL eviction is enabled.
	ttlEviction bool

	// currentTime is the time source.
	currentTime func() time.Time
}

// DefaultMemoryConfig provides default config values for the store.
var DefaultMemoryConfig = MemoryConfig{
	MaxSize:     1 << 28, // 256 MiB
	MaxItemSize: 1 << 27, // 128 MiB
	DefaultTTL:  "120s",
}

// MemoryConfig holds the in-memory store config.
type MemoryConfig struct {
	// MaxSize is the overall maximum number of bytes the store can hold.
	MaxSize uint64 `yaml:"max_size"`
	// MaxItemSize is the maximum size of a single item.
	MaxItemSize uint64 `yaml:"max_item_size"`
	// DefaultTTL is the default ttl of a single item. Set to "-1" to
	// disable TTL eviction.
	DefaultTTL string `yaml:"default_ttl"`
	// TTLEviction specifies if eviction of items by TTL is enabled.
	TTLEviction bool
}

// Sanitize checks the config and adds defaults to missing values.
func (c *MemoryConfig) Sanitize() {
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMemoryConfig.MaxSize
	}
	if c.MaxItemSize == 0 {
		c.MaxItemSize = DefaultMemoryConfig.MaxItemSize
	}
	if len(c.DefaultTTL) == 0 {
		c.DefaultTTL = DefaultMemoryConfig.DefaultTTL
	}
	c.TTLEviction = c.DefaultTTL != "-1"
}

// NewInMemoryCache creates a new thread-safe LRU in-memory store. It ensures
// the total size approximately does not exceed MaxSize.
func NewInMemoryCache(config MemoryConfig) (Provider, error) {
	config.Sanitize()
	if config.MaxItemSize > config.MaxSize {
		return nil, fmt.Errorf("max item size (%v) must not exceed overall cache size (%v)",
			config.MaxItemSize, config.MaxSize)
	}

	ttl, err := time.ParseDuration(config.DefaultTTL)
	if err != nil {
		ttl = 120 * time.Second
	}

	c := &memoryCache{
		maxSizeBytes:     config.MaxSize,
		maxItemSizeBytes: config.MaxItemSize,
		defaultTTL:       ttl,
		ttlEviction:      config.TTLEviction,
		expiry:           make(map[string]time.Time),
		currentTime:      time.Now,
	}

	// Initialize the LRU cache with a high entry limit, since evictions
	// are managed internally based on item size.
	l, err := lru.NewWithEvict[string, []byte](maxInt, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.inner = l

	return c, nil
}

// onEvict is the eviction callback.
func (c *memoryCache) onEvict(key string, val []byte) {
	c.curSize -= itemSize(val)
	delete(c.expiry, key)
}

// Get retrieves an element based on the provided key.
func (c *memoryCache) Get(ctx context.Context, key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttlEviction {
		if expires, ok := c.expiry[key]; ok && expires.Before(c.currentTime()) {
			c.remove(ctx, key)
			return nil
		}
	}

	v, ok := c.inner.Get(key)
	if !ok {
		return nil
	}
	return v
}

// Set adds an item to the store. Items larger than the maximum item size are
// dropped; otherwise the store evicts older items until the new one fits.
func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := itemSize(value)
	if size > c.maxItemSizeBytes {
		log.Debug().Str("key", key).Msg("Item is bigger than maxItemSize")
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	// If an item is to be updated by a smaller one, just set the new
	// value without checking the capacity.
	if ent, ok := c.inner.Get(key); ok {
		entSize := itemSize(ent)
		if size <= entSize {
			c.inner.Add(key, value)
			c.curSize -= entSize - size
			c.expiry[key] = c.currentTime().Add(ttl)
			return
		}
		c.inner.Remove(key)
	}

	c.ensureCapacity(size)

	c.inner.Add(key, value)
	c.curSize += size
	c.expiry[key] = c.currentTime().Add(ttl)
}

// ensureCapacity ensures there is enough capacity for the new item.
func (c *memoryCache) ensureCapacity(size uint64) {
	for c.curSize+size > c.maxSizeBytes {
		if _, _, ok := c.inner.RemoveOldest(); !ok {
			log.Debug().Msg("Failed to allocate space for new item, reset cache")
			c.reset()
		}
	}
}

// itemSize calculates the actual size of the provided slice.
func itemSize(b []byte) uint64 {
	return sliceHeaderSize + uint64(len(b))
}

// reset resets the store.
func (c *memoryCache) reset() {
	c.inner.Purge()
	c.curSize = 0
	c.expiry = make(map[string]time.Time)
}

// Delete deletes an element in the store.
func (c *memoryCache) Delete(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(ctx, key)
}

// remove deletes an item in the store. Guarded by caller.
func (c *memoryCache) remove(_ context.Context, key string) bool {
	delete(c.expiry, key)
	return c.inner.Remove(key)
}

// Keys returns a slice of the keys in the store, from oldest to newest.
func (c *memoryCache) Keys(_ context.Context, prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prefix == "" {
		return c.inner.Keys()
	}
	var keys []string
	for _, k := range c.inner.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Purge purges all keys matching the specified pattern from the store. An
// empty pattern removes every entry.
func (c *memoryCache) Purge(ctx context.Context, pattern string) error {
	if len(pattern) == 0 {
		c.mu.Lock()
		c.reset()
		c.mu.Unlock()
		return nil
	}
	r, err := compileWildcard(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.inner.Keys() {
		if r.MatchString(k) {
			c.remove(ctx, k)
		}
	}
	return nil
}

// Size returns the number of entries currently stored.
func (c *memoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// compileWildcard converts a wildcard pattern to an anchored regexp, since Go
// does not natively support wildcard matching on strings.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	var b strings.Builder
	b.WriteString("^")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(p))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
