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

// Package middleware embeds the cache into an HTTP client as a RoundTripper.
// The transport never originates requests on its own; it consults the policy
// engine, forwards conditional requests through the wrapped transport, and
// folds origin answers back into the store.
package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kacheio/policy/pkg/cache"
	"github.com/kacheio/policy/pkg/utils/clock"
	"github.com/rs/zerolog/log"
)

const (
	xCache      = "X-Cache"
	HIT         = "HIT"
	MISS        = "MISS"
	REVALIDATED = "REVALIDATED"
	STALE       = "STALE"
)

// Transport is the http filter implementing the caching logic.
type Transport struct {
	// Transport is the RoundTripper interface actually used to make
	// requests. If nil, http.DefaultTransport is used.
	Transport http.RoundTripper

	// Cache is the policy-driven http cache.
	Cache *cache.HttpCache

	// MarkCachedResponses attaches the X-Cache debug header to responses.
	MarkCachedResponses bool

	// currentTime holds the time source.
	currentTime clock.TimeSource
}

// NewCachedTransport returns a new Transport around the given cache.
func NewCachedTransport(c *cache.HttpCache) *Transport {
	return &Transport{
		Cache:       c,
		currentTime: clock.NewSystemTimeSource(),
	}
}

// RoundTrip issues an http roundtrip and applies the caching logic.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !cache.IsCacheableRequest(req) {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).
			Msg("Ignoring uncacheable request")
		return t.send(req)
	}

	ctx := req.Context()
	now := t.currentTime.Now()

	lookup := t.Cache.Lookup(ctx, req, now)
	switch lookup.Status {
	case cache.EntryOk:
		log.Debug().Str("url", req.URL.String()).Msg("Cache HIT")
		return t.cachedResponse(req, lookup.Policy.Status(), lookup.Headers, lookup.Body, HIT), nil

	case cache.EntryRequiresValidation:
		return t.revalidate(req, lookup, now)

	default:
		res, err := t.send(req)
		if err != nil {
			return nil, err
		}
		t.Cache.Store(ctx, req, res, now)
		t.mark(res, MISS)
		return res, nil
	}
}

// revalidate sends the conditional request and folds the origin's answer back
// into the store, serving stale if the origin fails and the policy permits.
func (t *Transport) revalidate(req *http.Request, lookup *cache.LookupResult, now time.Time) (*http.Response, error) {
	ctx := req.Context()

	rev := req.Clone(ctx)
	rev.Header = lookup.Conditional

	res, err := t.send(rev)
	if err != nil || res.StatusCode >= 500 {
		if lookup.Policy.CanServeStaleIfError(now) {
			log.Debug().Str("url", req.URL.String()).Msg("Origin failed, serving stale")
			headers := lookup.Policy.ResponseHeaders(now)
			return t.cachedResponse(req, lookup.Policy.Status(), headers, lookup.Body, STALE), nil
		}
		return res, err
	}

	modified := t.Cache.Update(ctx, req, res, now)
	if modified {
		// The origin replaced the entry; its response carries the body.
		t.mark(res, MISS)
		return res, nil
	}

	// The entry was refreshed in place; serve the stored body under the
	// updated headers.
	if res.Body != nil {
		_ = res.Body.Close()
	}
	refreshed := t.Cache.Lookup(ctx, req, now)
	if refreshed.Status == cache.EntryOk {
		return t.cachedResponse(req, refreshed.Policy.Status(), refreshed.Headers, refreshed.Body, REVALIDATED), nil
	}

	// The refreshed entry is unusable (e.g. still requires validation);
	// fall back to the origin without conditions.
	res, err = t.send(req)
	if err != nil {
		return nil, err
	}
	t.Cache.Store(ctx, req, res, now)
	t.mark(res, MISS)
	return res, nil
}

// cachedResponse assembles a reply from stored headers and body.
func (t *Transport) cachedResponse(req *http.Request, status int, headers http.Header, body []byte, state string) *http.Response {
	res := &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
	t.mark(res, state)
	return res
}

// mark tags the response with the cache state.
func (t *Transport) mark(res *http.Response, state string) {
	if t.MarkCachedResponses && res != nil {
		res.Header.Set(xCache, state)
	}
}

// send issues the request on the wrapped transport.
func (t *Transport) send(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}
