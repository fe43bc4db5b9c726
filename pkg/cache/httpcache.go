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

// Package cache ties the policy engine to a storage provider. It keys and
// persists entries, restores policies on lookup, and folds revalidation
// responses back into the store. Bodies are carried opaquely; all header and
// freshness decisions are delegated to pkg/policy.
package cache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kacheio/policy/pkg/policy"
	"github.com/kacheio/policy/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// HttpCache is the policy-driven http cache.
type HttpCache struct {
	// opts are the policy options applied to stored exchanges.
	opts policy.Options

	// cache holds the inner storage provider.
	cache store.Provider

	// metrics holds the cache counters.
	metrics *Metrics
}

// NewHttpCache creates a new http cache on top of the given provider.
func NewHttpCache(opts policy.Options, pdr store.Provider, reg prometheus.Registerer) *HttpCache {
	return &HttpCache{
		opts:    opts,
		cache:   pdr,
		metrics: NewMetrics(reg),
	}
}

// LookupResult is the outcome of a cache lookup.
type LookupResult struct {
	// Status holds the status of the cached entry.
	Status EntryStatus

	// Policy is the restored policy of the stored exchange.
	Policy *policy.CachePolicy

	// Headers is the header set of the cached reply. Set on EntryOk.
	Headers http.Header

	// Body is the stored response body. Set on EntryOk and
	// EntryRequiresValidation.
	Body []byte

	// Conditional holds the headers of the revalidation request to send
	// to the origin. Set on EntryRequiresValidation.
	Conditional http.Header
}

// Lookup fetches the entry matching the request and decides whether it can be
// served as-is or needs validation at the origin.
func (c *HttpCache) Lookup(ctx context.Context, req *http.Request, now time.Time) *LookupResult {
	key := NewKeyFromRequest(req).String()

	raw := c.cache.Get(ctx, key)
	if raw == nil {
		c.metrics.misses.Inc()
		return &LookupResult{Status: EntryInvalid}
	}

	entry, err := DecodeEntry(raw)
	if err != nil {
		log.Error().Err(err).Str("cache-key", key).Msg("Dropping undecodable cache entry")
		c.cache.Delete(ctx, key)
		c.metrics.misses.Inc()
		return &LookupResult{Status: EntryLookupError}
	}

	pol := policy.Restore(entry.Policy)
	result := pol.BeforeRequest(req, now)
	if result.Status == policy.ResultFresh {
		c.metrics.hits.Inc()
		return &LookupResult{
			Status:  EntryOk,
			Policy:  pol,
			Headers: result.Headers,
			Body:    entry.Body,
		}
	}

	c.metrics.validations.Inc()
	return &LookupResult{
		Status:      EntryRequiresValidation,
		Policy:      pol,
		Body:        entry.Body,
		Conditional: result.Conditional,
	}
}

// Store persists a response if the policy allows it. It reports whether the
// response was written. The response body is consumed and replaced so the
// caller can still forward it.
func (c *HttpCache) Store(ctx context.Context, req *http.Request, res *http.Response, now time.Time) bool {
	pol := policy.NewWithOptions(req, res, now, c.opts)
	if !pol.IsStorable() {
		return false
	}
	ttl := pol.TimeToLive(now) + pol.StaleLifetime()
	if ttl <= 0 {
		return false
	}

	body, err := drainBody(res)
	if err != nil {
		log.Error().Err(err).Msg("Reading response body for cache")
		return false
	}

	c.put(ctx, NewKeyFromRequest(req).String(), &Entry{Policy: pol.Export(), Body: body}, ttl)
	return true
}

// Update folds a revalidation response into the stored entry. A 304 keeps the
// stored body: with matching validators it refreshes the entry in place,
// otherwise its headers replace the stored policy, and the entry is dropped if
// the result has no remaining lifetime. A 5xx leaves the entry untouched. Any
// other response replaces the entry via the regular storability rules. It
// reports whether the origin sent replacement content, which the caller then
// serves from the response itself; without a usable stored entry it reports
// whether the response was stored.
func (c *HttpCache) Update(ctx context.Context, req *http.Request, res *http.Response, now time.Time) bool {
	key := NewKeyFromRequest(req).String()

	raw := c.cache.Get(ctx, key)
	if raw == nil {
		return c.Store(ctx, req, res, now)
	}
	entry, err := DecodeEntry(raw)
	if err != nil {
		c.cache.Delete(ctx, key)
		return c.Store(ctx, req, res, now)
	}

	pol := policy.Restore(entry.Policy)
	next, modified := pol.AfterResponse(req, res, now)
	if modified {
		c.cache.Delete(ctx, key)
		c.Store(ctx, req, res, now)
		return true
	}
	if next == pol {
		// The origin failed; the stored entry stays untouched.
		return false
	}

	ttl := next.TimeToLive(now) + next.StaleLifetime()
	if ttl <= 0 {
		c.cache.Delete(ctx, key)
		return false
	}
	c.put(ctx, key, &Entry{Policy: next.Export(), Body: entry.Body}, ttl)
	return false
}

// put encodes and writes an entry.
func (c *HttpCache) put(_ context.Context, key string, entry *Entry, ttl time.Duration) {
	enc, err := entry.Encode()
	if err != nil {
		log.Error().Err(err).Str("cache-key", key).Msg("Encoding cache entry")
		return
	}
	c.cache.Set(key, enc, ttl)
	c.metrics.stores.Inc()
}

// Delete removes the entry matching the request from the cache.
func (c *HttpCache) Delete(ctx context.Context, req *http.Request) {
	c.cache.Delete(ctx, NewKeyFromRequest(req).String())
}

// Keys returns the stored cache keys.
func (c *HttpCache) Keys(ctx context.Context) []string {
	return c.cache.Keys(ctx, keyPrefix)
}

// Purge removes all keys matching the given pattern, or every entry when the
// pattern is empty.
func (c *HttpCache) Purge(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = keyPrefix + "*"
	}
	return c.cache.Purge(ctx, pattern)
}

// Options returns the policy options the cache applies.
func (c *HttpCache) Options() policy.Options {
	return c.opts
}

// drainBody reads and restores the response body.
func drainBody(res *http.Response) ([]byte, error) {
	if res.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	_ = res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
