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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(headers ...string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "http://test.example.com/", nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return req
}

func testResponse(status int, headers ...string) *http.Response {
	res := &http.Response{StatusCode: status, Header: http.Header{}}
	for i := 0; i+1 < len(headers); i += 2 {
		res.Header.Add(headers[i], headers[i+1])
	}
	return res
}

func ttlSeconds(p *CachePolicy, now time.Time) int {
	return int(p.TimeToLive(now) / time.Second)
}

func freshHeaders(t *testing.T, p *CachePolicy, req *http.Request, now time.Time) http.Header {
	t.Helper()
	result := p.BeforeRequest(req, now)
	require.Equal(t, ResultFresh, result.Status)
	return result.Headers
}

func TestSimpleMiss(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200), now, DefaultOptions())
	assert.True(t, p.IsStale(now))
}

func TestSimpleHit(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "public, max-age=999999"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 999999, ttlSeconds(p, now))
}

func TestWeirdSyntax(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", ",,,,max-age =  456      ,"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 456, ttlSeconds(p, now))
}

func TestQuotedSyntax(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "  max-age = \"678\"      "), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 678, ttlSeconds(p, now))
}

func TestIISContradictingHeaders(t *testing.T) {
	now := time.Now()
	opts := DefaultOptions()
	opts.Shared = false
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "private, public, max-age=259200"), now, opts)
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 259200, ttlSeconds(p, now))
}

func TestPreCheckTolerated(t *testing.T) {
	now := time.Now()
	cc := "pre-check=0, post-check=0, no-store, no-cache, max-age=100"
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", cc), now, DefaultOptions())

	assert.True(t, p.IsStale(now))
	assert.False(t, p.IsStorable())
	assert.Equal(t, 0, ttlSeconds(p, now))

	// A max-stale request still gets the response, directives untouched.
	headers := freshHeaders(t, p, testRequest("Cache-Control", "max-stale"), now)
	assert.Equal(t, cc, headers.Get("Cache-Control"))
}

func TestPreCheckPoison(t *testing.T) {
	now := time.Now()
	opts := DefaultOptions()
	opts.IgnoreCargoCult = true
	res := testResponse(200,
		"Cache-Control", "pre-check=0, post-check=0, no-cache, no-store, max-age=100, custom, foo=bar",
		"Pragma", "no-cache")
	p := NewWithOptions(testRequest(), res, now, opts)

	assert.False(t, p.IsStale(now))
	assert.True(t, p.IsStorable())
	assert.Equal(t, 100, ttlSeconds(p, now))

	headers := freshHeaders(t, p, testRequest(), now)
	cc := headers.Get("Cache-Control")
	assert.NotContains(t, cc, "pre-check")
	assert.NotContains(t, cc, "post-check")
	assert.NotContains(t, cc, "no-store")
	assert.Contains(t, cc, "max-age=100")
	assert.Contains(t, cc, "custom")
	assert.Contains(t, cc, "foo=bar")
	assert.Empty(t, headers.Get("Pragma"))
}

func TestPreCheckPoisonUndefinedHeader(t *testing.T) {
	now := time.Now()
	opts := DefaultOptions()
	opts.IgnoreCargoCult = true
	res := testResponse(200,
		"Cache-Control", "pre-check=0, post-check=0, no-cache, no-store",
		"Expires", "yesterday!")
	p := NewWithOptions(testRequest(), res, now, opts)

	assert.True(t, p.IsStale(now))
	assert.True(t, p.IsStorable())
	assert.Equal(t, 0, ttlSeconds(p, now))

	headers := freshHeaders(t, p, testRequest("Cache-Control", "max-stale"), now)
	assert.Empty(t, headers.Get("Expires"))
}

func TestCacheWithExpires(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Date", formatHTTPDate(now),
		"Expires", formatHTTPDate(now.Add(2*time.Second)))
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 2, ttlSeconds(p, now))
}

func TestCacheWithExpiresRelativeToDate(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Date", formatHTTPDate(now.Add(-30*time.Second)),
		"Expires", formatHTTPDate(now))
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())
	assert.Equal(t, 30, ttlSeconds(p, now))
}

func TestCacheExpiresNoDate(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Cache-Control", "public",
		"Expires", formatHTTPDate(now.Add(time.Hour)))
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Greater(t, ttlSeconds(p, now), 3595)
	assert.Less(t, ttlSeconds(p, now), 3605)
}

func TestAges(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100",
		"Age", "50"), now, DefaultOptions())
	require.True(t, p.IsStorable())

	assert.Equal(t, 50, ttlSeconds(p, now))
	assert.False(t, p.IsStale(now))

	now = now.Add(48 * time.Second)
	assert.Equal(t, 2, ttlSeconds(p, now))
	assert.False(t, p.IsStale(now))

	now = now.Add(5 * time.Second)
	assert.True(t, p.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(p, now))
}

func TestAgeCanMakeStale(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100",
		"Age", "101"), now, DefaultOptions())
	assert.True(t, p.IsStale(now))
	assert.True(t, p.IsStorable())
}

func TestAgeNotAlwaysStale(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=20",
		"Age", "15"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.True(t, p.IsStorable())
}

func TestBogusAgeIgnored(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=20",
		"Age", "golden"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.True(t, p.IsStorable())
}

func TestHeuristicFreshnessFromLastModified(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Date", formatHTTPDate(now),
		"Last-Modified", "Mon, 07 Mar 2016 11:52:56 GMT"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Greater(t, ttlSeconds(p, now), 100)
}

func TestImmutableSimpleHit(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "immutable, max-age=999999"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 999999, ttlSeconds(p, now))
}

func TestImmutableCanExpire(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "immutable, max-age=0"), now, DefaultOptions())
	assert.True(t, p.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(p, now))
}

func TestImmutableFiles(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Date", formatHTTPDate(now),
		"Cache-Control", "immutable",
		"Last-Modified", formatHTTPDate(now)), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Greater(t, ttlSeconds(p, now), 100)
}

func TestImmutableCanBeOff(t *testing.T) {
	now := time.Now()
	opts := DefaultOptions()
	opts.ImmutableMinTTL = 0
	p := NewWithOptions(testRequest(), testResponse(200,
		"Date", formatHTTPDate(now),
		"Cache-Control", "immutable",
		"Last-Modified", formatHTTPDate(now)), now, opts)
	assert.True(t, p.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(p, now))
}

func TestPragmaNoCache(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Pragma", "no-cache",
		"Last-Modified", "Mon, 07 Mar 2016 11:52:56 GMT"), now, DefaultOptions())
	assert.True(t, p.IsStale(now))
}

func TestBlankCacheControlAndPragmaNoCache(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "",
		"Pragma", "no-cache",
		"Last-Modified", formatHTTPDate(now.Add(-10*time.Second))), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
}

func TestNoStore(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "no-store, public, max-age=1"), now, DefaultOptions())
	assert.True(t, p.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(p, now))
}

func TestObservePrivateCache(t *testing.T) {
	now := time.Now()
	res := func() *http.Response { return testResponse(200, "Cache-Control", "private, max-age=1234") }

	proxy := NewWithOptions(testRequest(), res(), now, DefaultOptions())
	assert.True(t, proxy.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(proxy, now))

	opts := DefaultOptions()
	opts.Shared = false
	ua := NewWithOptions(testRequest(), res(), now, opts)
	assert.False(t, ua.IsStale(now))
	assert.Equal(t, 1234, ttlSeconds(ua, now))
}

func TestDontShareCookies(t *testing.T) {
	now := time.Now()
	res := func() *http.Response {
		return testResponse(200, "Set-Cookie", "foo=bar", "Cache-Control", "max-age=99")
	}

	proxy := NewWithOptions(testRequest(), res(), now, DefaultOptions())
	assert.True(t, proxy.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(proxy, now))

	opts := DefaultOptions()
	opts.Shared = false
	ua := NewWithOptions(testRequest(), res(), now, opts)
	assert.False(t, ua.IsStale(now))
	assert.Equal(t, 99, ttlSeconds(ua, now))
}

func TestDoShareCookiesIfImmutable(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Set-Cookie", "foo=bar",
		"Cache-Control", "immutable, max-age=99"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 99, ttlSeconds(p, now))
}

func TestCacheExplicitlyPublicCookie(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Set-Cookie", "foo=bar",
		"Cache-Control", "max-age=5, public"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 5, ttlSeconds(p, now))
}

func TestMissMaxAgeZero(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "public, max-age=0"), now, DefaultOptions())
	assert.True(t, p.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(p, now))
}

func TestStatusCacheability(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		status  int
		headers []string
		stale   bool
	}{
		{"Uncacheable 503", 503, []string{"Cache-Control", "public, max-age=1000"}, true},
		{"Uncacheable 412", 412, []string{"Cache-Control", "public, max-age=1000"}, true},
		{"Cacheable 301", 301, []string{"Last-Modified", "Mon, 07 Mar 2016 11:52:56 GMT"}, false},
		{"Uncacheable 303", 303, []string{"Last-Modified", "Mon, 07 Mar 2016 11:52:56 GMT"}, true},
		{"Cacheable 303", 303, []string{"Cache-Control", "max-age=1000"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewWithOptions(testRequest(), testResponse(c.status, c.headers...), now, DefaultOptions())
			assert.Equal(t, c.stale, p.IsStale(now))
			if c.stale {
				assert.Equal(t, 0, ttlSeconds(p, now))
			}
		})
	}
}

func TestExpiredExpiresCachedWithMaxAge(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "public, max-age=9999",
		"Expires", "Sat, 07 May 2016 15:35:18 GMT"), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 9999, ttlSeconds(p, now))
}

func TestExpiredExpiresCachedWithSMaxAge(t *testing.T) {
	now := time.Now()
	res := func() *http.Response {
		return testResponse(200,
			"Cache-Control", "public, s-maxage=9999",
			"Expires", "Sat, 07 May 2016 15:35:18 GMT")
	}

	proxy := NewWithOptions(testRequest(), res(), now, DefaultOptions())
	assert.False(t, proxy.IsStale(now))
	assert.Equal(t, 9999, ttlSeconds(proxy, now))

	opts := DefaultOptions()
	opts.Shared = false
	ua := NewWithOptions(testRequest(), res(), now, opts)
	assert.True(t, ua.IsStale(now))
	assert.Equal(t, 0, ttlSeconds(ua, now))
}

func TestMaxAgeWinsOverFutureExpires(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "public, max-age=333",
		"Expires", formatHTTPDate(now.Add(time.Hour))), now, DefaultOptions())
	assert.False(t, p.IsStale(now))
	assert.Equal(t, 333, ttlSeconds(p, now))
}

func TestRemoveHopByHopHeaders(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Te", "deflate",
		"Date", "now",
		"Custom", "header",
		"Oompa", "lumpa",
		"Connection", "close, oompa, header",
		"Age", "10",
		"Cache-Control", "public, max-age=333")
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())

	now = now.Add(1005 * time.Millisecond)
	headers := freshHeaders(t, p, testRequest(), now)

	assert.Empty(t, headers.Get("Connection"))
	assert.Empty(t, headers.Get("Te"))
	assert.Empty(t, headers.Get("Oompa"))
	assert.Equal(t, "public, max-age=333", headers.Get("Cache-Control"))
	assert.NotEqual(t, "now", headers.Get("Date"), "updated age requires updated date")
	assert.Equal(t, "header", headers.Get("Custom"))
	assert.Equal(t, "11", headers.Get("Age"))
}

func TestVaryMatching(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Cache-Control", "max-age=999",
		"Vary", "Accept-Encoding")
	p := NewWithOptions(testRequest("Accept-Encoding", "gzip"), res, now, DefaultOptions())

	match := p.BeforeRequest(testRequest("Accept-Encoding", "gzip"), now)
	assert.Equal(t, ResultFresh, match.Status)

	mismatch := p.BeforeRequest(testRequest("Accept-Encoding", "br"), now)
	assert.Equal(t, ResultStale, mismatch.Status)

	missing := p.BeforeRequest(testRequest(), now)
	assert.Equal(t, ResultStale, missing.Status)
}

func TestVaryAsteriskNeverMatches(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Cache-Control", "max-age=999",
		"Vary", "*")
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())
	assert.True(t, p.IsStale(now))
	assert.Equal(t, ResultStale, p.BeforeRequest(testRequest(), now).Status)
}

func TestRequestCacheControlForcesRevalidation(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", "max-age=999"), now, DefaultOptions())

	cases := []struct {
		name    string
		headers []string
		want    ResultStatus
	}{
		{"Plain request is fresh", nil, ResultFresh},
		{"No-cache forces revalidation", []string{"Cache-Control", "no-cache"}, ResultStale},
		{"Pragma no-cache forces revalidation", []string{"Pragma", "no-cache"}, ResultStale},
		{"Max-age zero forces revalidation", []string{"Cache-Control", "max-age=0"}, ResultStale},
		{"Min-fresh within ttl is fresh", []string{"Cache-Control", "min-fresh=500"}, ResultFresh},
		{"Min-fresh beyond ttl forces revalidation", []string{"Cache-Control", "min-fresh=1000"}, ResultStale},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := testRequest(c.headers...)
			assert.Equal(t, c.want, p.BeforeRequest(req, now).Status)
		})
	}
}

func TestMaxStaleRelaxations(t *testing.T) {
	now := time.Now()
	later := now.Add(200 * time.Second) // 100s past expiry

	cases := []struct {
		name  string
		resCC string
		reqCC string
		want  ResultStatus
	}{
		{"Unbounded max-stale serves stale", "max-age=100", "max-stale", ResultFresh},
		{"Large enough max-stale serves stale", "max-age=100", "max-stale=150", ResultFresh},
		{"Too small max-stale revalidates", "max-age=100", "max-stale=50", ResultStale},
		{"Must-revalidate defeats max-stale", "max-age=100, must-revalidate", "max-stale", ResultStale},
		{"Proxy-revalidate defeats max-stale in shared cache", "max-age=100, proxy-revalidate", "max-stale", ResultStale},
		{"S-maxage defeats max-stale in shared cache", "s-maxage=100", "max-stale", ResultStale},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewWithOptions(testRequest(), testResponse(200, "Cache-Control", c.resCC), now, DefaultOptions())
			req := testRequest("Cache-Control", c.reqCC)
			assert.Equal(t, c.want, p.BeforeRequest(req, later).Status)
		})
	}
}

func TestStaleWindows(t *testing.T) {
	now := time.Now()
	p := NewWithOptions(testRequest(), testResponse(200,
		"Cache-Control", "max-age=100, stale-while-revalidate=50, stale-if-error=200"), now, DefaultOptions())

	// The extension windows never extend the fresh lifetime itself.
	assert.Equal(t, 100, ttlSeconds(p, now))

	at := func(offset time.Duration) time.Time { return now.Add(offset) }

	assert.True(t, p.CanServeStaleWhileRevalidate(at(120*time.Second)))
	assert.False(t, p.CanServeStaleWhileRevalidate(at(160*time.Second)))
	assert.True(t, p.CanServeStaleIfError(at(250*time.Second)))
	assert.False(t, p.CanServeStaleIfError(at(310*time.Second)))
}

func TestAuthorizedRequests(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name     string
		resCC    string
		storable bool
	}{
		{"Authorized response not stored by default", "max-age=100", false},
		{"Public allows storing authorized", "public, max-age=100", true},
		{"Must-revalidate allows storing authorized", "max-age=100, must-revalidate", true},
		{"S-maxage allows storing authorized", "s-maxage=100", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := testRequest("Authorization", "Bearer token")
			p := NewWithOptions(req, testResponse(200, "Cache-Control", c.resCC), now, DefaultOptions())
			assert.Equal(t, c.storable, p.IsStorable())
		})
	}
}

func TestTimeToLiveMonotonicity(t *testing.T) {
	now := time.Now()
	responses := []*http.Response{
		testResponse(200, "Cache-Control", "max-age=100"),
		testResponse(200, "Cache-Control", "max-age=100", "Age", "50"),
		testResponse(200, "Expires", formatHTTPDate(now.Add(time.Minute)), "Date", formatHTTPDate(now)),
		testResponse(200, "Cache-Control", "no-store"),
		testResponse(503, "Cache-Control", "max-age=100"),
	}
	for _, res := range responses {
		p := NewWithOptions(testRequest(), res, now, DefaultOptions())
		prev := p.TimeToLive(now)
		for offset := time.Second; offset < 200*time.Second; offset += 13 * time.Second {
			ttl := p.TimeToLive(now.Add(offset))
			assert.LessOrEqual(t, ttl, prev)
			assert.Equal(t, ttl == 0, p.IsStale(now.Add(offset)))
			prev = ttl
		}
		if !p.IsStorable() {
			assert.Equal(t, time.Duration(0), p.TimeToLive(now))
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Cache-Control", "public, max-age=333",
		"Etag", "\"v1\"",
		"Vary", "Accept-Encoding",
		"Connection", "oompa",
		"Oompa", "lumpa")
	p := NewWithOptions(testRequest("Accept-Encoding", "gzip"), res, now, DefaultOptions())

	restored := Restore(p.Export())

	later := now.Add(10 * time.Second)
	assert.Equal(t, p.IsStorable(), restored.IsStorable())
	assert.Equal(t, p.TimeToLive(later), restored.TimeToLive(later))
	assert.Equal(t, p.ResponseHeaders(later), restored.ResponseHeaders(later))

	match := restored.BeforeRequest(testRequest("Accept-Encoding", "gzip"), later)
	require.Equal(t, ResultFresh, match.Status)
	assert.Empty(t, match.Headers.Get("Oompa"))
}

func TestResponseHeadersOmitHopByHop(t *testing.T) {
	now := time.Now()
	res := testResponse(200,
		"Cache-Control", "max-age=60",
		"Keep-Alive", "timeout=5",
		"Transfer-Encoding", "chunked",
		"Upgrade", "h2c",
		"Connection", "x-internal",
		"X-Internal", "1",
		"Content-Type", "text/plain")
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())

	headers := p.ResponseHeaders(now)
	for _, name := range []string{"Keep-Alive", "Transfer-Encoding", "Upgrade", "Connection", "X-Internal"} {
		assert.Empty(t, headers.Get(name), name)
	}
	assert.Equal(t, "text/plain", headers.Get("Content-Type"))
}

func TestUntrustedServerDate(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	opts := DefaultOptions()
	opts.TrustServerDate = false
	res := testResponse(200,
		"Date", formatHTTPDate(now.Add(-30*time.Second)),
		"Expires", formatHTTPDate(now.Add(30*time.Second)))
	p := NewWithOptions(testRequest(), res, now, opts)
	// Lifetime is anchored to the response time, not the skewed Date.
	assert.Equal(t, 30, ttlSeconds(p, now))
}

func TestFarOffServerDateIgnored(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	res := testResponse(200,
		"Date", formatHTTPDate(now.Add(-10*24*time.Hour)),
		"Expires", formatHTTPDate(now.Add(60*time.Second)))
	p := NewWithOptions(testRequest(), res, now, DefaultOptions())
	// A Date more than a clock drift away falls back to the response time.
	assert.Equal(t, 60, ttlSeconds(p, now))
}

func TestDirectiveReemission(t *testing.T) {
	d := ParseDirectives("pre-check=0, post-check=0, no-cache, no-store, max-age=100, custom, foo=bar")
	d.Delete("pre-check")
	d.Delete("post-check")
	d.Delete("no-cache")
	d.Delete("no-store")
	out := d.String()
	assert.Equal(t, "max-age=100, custom, foo=bar", out)
	assert.False(t, strings.Contains(out, "pre-check"))
}
