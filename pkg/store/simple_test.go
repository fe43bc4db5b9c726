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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimpleCache(t *testing.T) {
	cache, _ := NewSimpleCache(nil)

	ctx := context.Background()
	ttl := 120 * time.Second

	cache.Set("A", []byte("Alice"), ttl)
	assert.Equal(t, "Alice", string(cache.Get(ctx, "A")))
	assert.Nil(t, cache.Get(ctx, "B"))
	assert.Equal(t, 1, cache.Size())

	cache.Set("B", []byte("Bob"), ttl)
	cache.Set("E", []byte("Eve"), ttl)
	cache.Set("G", []byte("Gopher"), ttl)
	assert.Equal(t, 4, cache.Size())

	cache.Set("A", []byte("Foo"), ttl)
	assert.Equal(t, "Foo", string(cache.Get(ctx, "A")))

	assert.True(t, cache.Delete(ctx, "A"))
	assert.False(t, cache.Delete(ctx, "A"))
	assert.Nil(t, cache.Get(ctx, "A"))
}

func TestSimpleCacheKeysAndPurge(t *testing.T) {
	cache, _ := NewSimpleCache(nil)
	ctx := context.Background()

	cache.Set("policy-a", []byte("1"), 0)
	cache.Set("policy-b", []byte("2"), 0)
	cache.Set("other", []byte("3"), 0)

	assert.ElementsMatch(t, []string{"policy-a", "policy-b"}, cache.Keys(ctx, "policy-"))
	assert.Len(t, cache.Keys(ctx, ""), 3)

	assert.NoError(t, cache.Purge(ctx, "policy-*"))
	assert.Equal(t, 1, cache.Size())

	assert.NoError(t, cache.Purge(ctx, ""))
	assert.Equal(t, 0, cache.Size())
}

func TestSimpleCacheConcurrentAccess(t *testing.T) {
	cache, _ := NewSimpleCache(nil)
	ttl := 120 * time.Second

	for k, v := range map[string]string{"A": "Alice", "B": "Bob", "G": "Gopher", "E": "Eve"} {
		cache.Set(k, []byte(v), ttl)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 1000; j++ {
				cache.Get(context.Background(), "A")
				cache.Set("A", []byte("Arnie"), ttl)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, "Arnie", string(cache.Get(context.Background(), "A")))
}
