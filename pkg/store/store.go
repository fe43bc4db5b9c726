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

// Package store provides the storage tier for encoded cache entries. The
// policy engine never touches it directly; pkg/cache keys entries and decides
// their lifetime, the providers here only persist bytes.
package store

import (
	"context"
	"errors"
	"time"
)

// Provider is a generalized interface to an entry store.
// See store.NewSimpleCache for a minimal implementation.
type Provider interface {
	// Get retrieves an element based on a key, returning nil if the
	// element does not exist.
	Get(ctx context.Context, key string) []byte

	// Set adds an element to the store.
	Set(key string, value []byte, ttl time.Duration)

	// Delete deletes an element in the store.
	Delete(ctx context.Context, key string) bool

	// Keys returns a slice of keys, filtered by prefix.
	Keys(ctx context.Context, prefix string) []string

	// Purge removes all keys matching the wildcard pattern. An empty
	// pattern removes every entry.
	Purge(ctx context.Context, pattern string) error

	// Size returns the number of entries currently stored.
	Size() int
}

// RemoteCacheClient is a generalized interface to interact with a remote
// entry store.
type RemoteCacheClient interface {
	// Fetch fetches a key from the remote store. Returns nil if an error
	// occurs.
	Fetch(ctx context.Context, key string) []byte

	// Store stores a key and value in the remote store. Returns an error
	// in case the operation fails.
	Store(key string, value []byte, ttl time.Duration) error

	// StoreAsync stores a key and value through the async job queue.
	StoreAsync(key string, value []byte, ttl time.Duration) error

	// Delete deletes a key from the remote store.
	Delete(ctx context.Context, key string) error

	// Keys returns a slice of keys, filtered by prefix.
	Keys(ctx context.Context, prefix string) []string

	// Purge removes all keys matching the wildcard pattern.
	Purge(ctx context.Context, pattern string) error

	// Stop closes the client connection.
	Stop()
}

const (
	BackendInMemory = "inmemory"
	BackendRedis    = "redis"
)

var errUnsupportedBackend = errors.New("unsupported store backend")

// Config holds the configuration for the storage backend.
type Config struct {
	Backend    string       `yaml:"backend"`
	Layered    bool         `yaml:"layered"`
	LayeredTTL string       `yaml:"layered_ttl"`
	InMemory   MemoryConfig `yaml:"inmemory"`
	Redis      RedisConfig  `yaml:"redis"`
}

// CreateProvider creates a storage backend based on the provided
// configuration.
func CreateProvider(name string, config Config) (Provider, error) {
	switch config.Backend {
	case BackendInMemory, "":
		return NewInMemoryCache(config.InMemory)
	case BackendRedis:
		client, err := NewRedisClient(config.Redis)
		if err != nil {
			return nil, errors.Join(err, errors.New("failed to create redis client"))
		}
		cache := NewRedisCache(name, client)
		if config.Layered {
			ttl, err := time.ParseDuration(config.LayeredTTL)
			if err != nil {
				ttl = 120 * time.Second
			}
			return NewCached(cache, name, ttl, config.InMemory)
		}
		return cache, nil
	default:
		return nil, errUnsupportedBackend
	}
}
