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

package policy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lastModified = "Mon, 07 Mar 2016 11:52:56 GMT"

func TestRevalidationHeadersWithEtag(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=0",
		"Etag", `"v1"`), now, DefaultOptions())

	headers := p.RevalidationHeaders(testRequest("Accept", "text/html"))
	assert.Equal(t, `"v1"`, headers.Get("If-None-Match"))
	assert.Empty(t, headers.Get("If-Modified-Since"))
	assert.Equal(t, "text/html", headers.Get("Accept"))
}

func TestRevalidationHeadersWithLastModified(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=0",
		"Last-Modified", lastModified), now, DefaultOptions())

	headers := p.RevalidationHeaders(testRequest())
	assert.Equal(t, lastModified, headers.Get("If-Modified-Since"))
	assert.Empty(t, headers.Get("If-None-Match"))
}

func TestRevalidationHeadersWithBothValidators(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=0",
		"Etag", `"v1"`,
		"Last-Modified", lastModified), now, DefaultOptions())

	headers := p.RevalidationHeaders(testRequest())
	assert.Equal(t, `"v1"`, headers.Get("If-None-Match"))
	assert.Equal(t, lastModified, headers.Get("If-Modified-Since"))
}

func TestRevalidationHeadersDropHopByHop(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Etag", `"v1"`), now, DefaultOptions())

	req := testRequest(
		"Connection", "x-forward",
		"X-Forward", "1",
		"Te", "deflate",
		"If-Range", `"v0"`)
	headers := p.RevalidationHeaders(req)
	assert.Empty(t, headers.Get("Connection"))
	assert.Empty(t, headers.Get("X-Forward"))
	assert.Empty(t, headers.Get("Te"))
	assert.Empty(t, headers.Get("If-Range"))
}

func TestRevalidationHeadersMismatchedRequestDropsValidators(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Vary", "Accept-Language",
		"Etag", `"v1"`,
		"Last-Modified", lastModified), now, DefaultOptions())

	headers := p.RevalidationHeaders(testRequest("Accept-Language", "de"))
	assert.Empty(t, headers.Get("If-None-Match"))
	assert.Empty(t, headers.Get("If-Modified-Since"))
}

func TestRevalidationHeadersHeadAllowed(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Etag", `"v1"`), now, DefaultOptions())

	head, _ := http.NewRequest(http.MethodHead, "http://test.example.com/", nil)
	headers := p.RevalidationHeaders(head)
	assert.Equal(t, `"v1"`, headers.Get("If-None-Match"))
}

func TestRevalidationHeadersWeakEtagFilteredForNonGet(t *testing.T) {
	now := time.Now()
	post, _ := http.NewRequest(http.MethodPost, "http://test.example.com/", nil)
	p := NewWithOptions(post, testResponse(200,
		"Cache-Control", "max-age=10",
		"Etag", `W/"v1"`,
		"Last-Modified", lastModified), now, DefaultOptions())

	rev, _ := http.NewRequest(http.MethodPost, "http://test.example.com/", nil)
	headers := p.RevalidationHeaders(rev)
	assert.Empty(t, headers.Get("If-None-Match"))
	assert.Empty(t, headers.Get("If-Modified-Since"))
}

func TestAfterResponseNotModified(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100",
		"Etag", `"v1"`,
		"Content-Type", "text/plain",
		"Content-Length", "10"), now, DefaultOptions())

	later := now.Add(150 * time.Second)
	require.True(t, p.IsStale(later))

	rev := testResponse(304,
		"Cache-Control", "max-age=100",
		"Etag", `"v1"`,
		"Content-Length", "999")
	next, modified := p.AfterResponse(testRequest(), rev, later)

	assert.False(t, modified)
	assert.False(t, next.IsStale(later))
	assert.Equal(t, 100, ttlSeconds(next, later))

	headers := next.ResponseHeaders(later)
	assert.Equal(t, "text/plain", headers.Get("Content-Type"))
	// Content-Length must never be taken from the 304.
	assert.Equal(t, "10", headers.Get("Content-Length"))
}

func TestAfterResponseMismatchedEtagReplaces(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100",
		"Etag", `"v1"`), now, DefaultOptions())

	rev := testResponse(304, "Etag", `"v2"`)
	next, modified := p.AfterResponse(testRequest(), rev, now)

	// A 304 with unknown validators has no body to serve; the entry is
	// replaced but not reported as modified.
	assert.False(t, modified)
	assert.Equal(t, 304, next.Export().Status)
}

func TestAfterResponseWeakEtagMatches(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100",
		"Etag", `W/"v1"`), now, DefaultOptions())

	rev := testResponse(304, "Etag", `W/"v1"`)
	_, modified := p.AfterResponse(testRequest(), rev, now)
	assert.False(t, modified)
}

func TestAfterResponseFullReplacement(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100",
		"Etag", `"v1"`), now, DefaultOptions())

	later := now.Add(time.Hour)
	rev := testResponse(200,
		"Cache-Control", "max-age=7",
		"Etag", `"v2"`)
	next, modified := p.AfterResponse(testRequest(), rev, later)

	assert.True(t, modified)
	assert.Equal(t, 7, ttlSeconds(next, later))
	assert.False(t, next.IsStale(later))
}

func TestAfterResponseServerErrorKeepsPolicy(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100, stale-if-error=500",
		"Etag", `"v1"`), now, DefaultOptions())

	later := now.Add(200 * time.Second)
	next, modified := p.AfterResponse(testRequest(), testResponse(503), later)

	assert.False(t, modified)
	assert.Same(t, p, next)
	assert.True(t, next.CanServeStaleIfError(later))
}

func TestAfterResponseLastModifiedMatch(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=10",
		"Last-Modified", lastModified), now, DefaultOptions())

	later := now.Add(time.Minute)
	rev := testResponse(304,
		"Cache-Control", "max-age=10",
		"Last-Modified", lastModified)
	next, modified := p.AfterResponse(testRequest(), rev, later)

	assert.False(t, modified)
	assert.False(t, next.IsStale(later))
}
