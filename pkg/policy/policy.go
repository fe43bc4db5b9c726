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

// Package policy implements RFC 7234 cache semantics as a pure value object.
// A CachePolicy is constructed once from a request/response pair and then
// answers storability, freshness, matching, and revalidation questions for
// any caller-provided instant. The package performs no I/O, reads no clock
// after construction, and never fails; malformed input degrades to the
// strictest safe interpretation.
package policy

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxClockDrift bounds how far a server Date may diverge from the local
// response time before it is discarded as unsynchronized.
const maxClockDrift = 8 * time.Hour

var (
	// understoodStatuses holds the status codes the cache implementation
	// understands. Responses with other statuses are never stored.
	// https://tools.ietf.org/html/rfc7231#section-6.1
	understoodStatuses = map[int]struct{}{
		200: {}, 203: {}, 204: {}, 206: {}, 300: {}, 301: {}, 302: {},
		303: {}, 304: {}, 307: {}, 308: {}, 404: {}, 405: {}, 410: {},
		414: {}, 421: {}, 425: {}, 426: {}, 428: {}, 429: {}, 431: {},
		451: {}, 501: {}, 505: {}, 506: {}, 507: {}, 508: {}, 510: {}, 511: {},
	}

	// defaultCacheableStatuses holds the status codes cacheable without
	// explicit freshness information.
	defaultCacheableStatuses = map[int]struct{}{
		200: {}, 203: {}, 204: {}, 300: {}, 301: {},
		404: {}, 405: {}, 410: {}, 414: {}, 501: {},
	}
)

// Options control the cache model the policy applies.
type Options struct {
	// Shared models a shared cache (proxy, CDN). A private user-agent
	// cache sets it to false and may store private and Set-Cookie
	// responses.
	Shared bool

	// CacheHeuristic is the fraction of the Last-Modified distance used as
	// freshness lifetime when the origin specifies none.
	CacheHeuristic float64

	// ImmutableMinTTL is the minimum lifetime assumed for responses marked
	// immutable that carry no applicable max-age or s-maxage directive; it
	// also acts as a floor for lifetimes derived from Expires or
	// Last-Modified. Zero disables the immutable extension.
	ImmutableMinTTL time.Duration

	// IgnoreCargoCult enables repair of the legacy pre-check/post-check
	// poison pattern, see repairCargoCult.
	IgnoreCargoCult bool

	// TrustServerDate uses the response Date header for lifetime
	// calculations when it is plausibly synchronized with the local clock.
	// When false the local response time is used instead.
	TrustServerDate bool
}

// DefaultOptions returns the options for a shared RFC-compliant cache.
func DefaultOptions() Options {
	return Options{
		Shared:          true,
		CacheHeuristic:  0.1,
		ImmutableMinTTL: 24 * time.Hour,
		TrustServerDate: true,
	}
}

// CachePolicy captures the cache-relevant state of a single exchange. It is
// immutable after construction; AfterResponse yields a new policy instead of
// mutating the receiver. All query methods are pure functions of the policy
// and the supplied instant and are safe for concurrent use.
type CachePolicy struct {
	opts Options

	// Request fingerprint.
	method     string
	uri        string
	host       string
	reqHeaders http.Header

	// Stored response.
	status       int
	resHeaders   http.Header
	responseTime time.Time

	reqDirectives *Directives
	resDirectives *Directives
}

// New creates a policy from a request and the origin's response to it, using
// the current wall clock and default shared-cache options.
func New(req *http.Request, res *http.Response) *CachePolicy {
	return NewWithOptions(req, res, time.Now(), DefaultOptions())
}

// NewWithOptions creates a policy with an explicit response time and options.
// Construction never fails; missing or malformed headers fall back per
// RFC 7234.
func NewWithOptions(req *http.Request, res *http.Response, now time.Time, opts Options) *CachePolicy {
	p := &CachePolicy{
		opts:         opts,
		status:       res.StatusCode,
		responseTime: now,
	}

	if req != nil {
		p.method = req.Method
		p.host = req.Host
		if req.URL != nil {
			p.uri = req.URL.String()
		}
		p.reqHeaders = cloneHeader(req.Header)
	} else {
		p.reqHeaders = http.Header{}
	}

	p.reqDirectives = ParseDirectives(p.reqHeaders.Get(HeaderCacheControl))

	resHeader := res.Header
	if resHeader == nil {
		resHeader = http.Header{}
	}
	p.resHeaders = dropHopByHopHeaders(resHeader)
	p.resDirectives = ParseDirectives(p.resHeaders.Get(HeaderCacheControl))

	if opts.IgnoreCargoCult {
		repairCargoCult(p.resDirectives, p.resHeaders)
	}

	// When the Cache-Control header field is absent, a no-cache Pragma
	// directive is equivalent to Cache-Control: no-cache; any other Pragma
	// directive is ignored.
	// https://httpwg.org/specs/rfc7234.html#header.pragma
	if _, hasCC := p.resHeaders[HeaderCacheControl]; !hasCC {
		if strings.Contains(p.resHeaders.Get(HeaderPragma), "no-cache") {
			p.resDirectives.add("no-cache", directiveValue{})
		}
	}

	return p
}

// IsStorable reports whether the response may be stored at all. A false
// result implies a zero lifetime at every instant.
// https://httpwg.org/specs/rfc7234.html#response.cacheability
func (p *CachePolicy) IsStorable() bool {
	if p.reqDirectives.Has("no-store") || p.resDirectives.Has("no-store") {
		return false
	}
	if !p.methodCacheable() {
		return false
	}
	if _, ok := understoodStatuses[p.status]; !ok {
		return false
	}
	if p.opts.Shared && p.resDirectives.Has("private") {
		return false
	}
	if p.opts.Shared && p.reqHeaders.Get(HeaderAuthorization) != "" && !p.allowsStoringAuthenticated() {
		return false
	}
	return p.resHeaders.Get(HeaderExpires) != "" ||
		p.resDirectives.Has("max-age") ||
		(p.opts.Shared && p.resDirectives.Has("s-maxage")) ||
		p.resDirectives.Has("public") ||
		p.statusCacheableByDefault()
}

// methodCacheable reports whether the request method allows storing the
// response. POST is cacheable only with explicit freshness information.
func (p *CachePolicy) methodCacheable() bool {
	switch p.method {
	case http.MethodGet, http.MethodHead:
		return true
	case http.MethodPost:
		return p.hasExplicitExpiration()
	}
	return false
}

func (p *CachePolicy) statusCacheableByDefault() bool {
	_, ok := defaultCacheableStatuses[p.status]
	return ok
}

// hasExplicitExpiration reports whether the origin provided freshness
// information applicable to this cache.
func (p *CachePolicy) hasExplicitExpiration() bool {
	if p.opts.Shared && p.resDirectives.Has("s-maxage") {
		return true
	}
	return p.resDirectives.Has("max-age") || p.resHeaders.Get(HeaderExpires) != ""
}

// allowsStoringAuthenticated reports whether a response to an authorized
// request may be stored in a shared cache.
// https://httpwg.org/specs/rfc7234.html#caching.authenticated.responses
func (p *CachePolicy) allowsStoringAuthenticated() bool {
	return p.resDirectives.Has("must-revalidate") ||
		p.resDirectives.Has("public") ||
		p.resDirectives.Has("s-maxage")
}

// Status returns the status code of the stored response.
func (p *CachePolicy) Status() int {
	return p.status
}

// date returns the instant lifetime calculations are anchored to: the server
// Date when trusted and plausibly synchronized, the response time otherwise.
func (p *CachePolicy) date() time.Time {
	if !p.opts.TrustServerDate {
		return p.responseTime
	}
	if d, ok := parseHTTPDate(p.resHeaders.Get(HeaderDate)); ok {
		drift := p.responseTime.Sub(d)
		if drift < 0 {
			drift = -drift
		}
		if drift < maxClockDrift {
			return d
		}
	}
	return p.responseTime
}

// ageValue returns the Age response header as a duration. Non-numeric values
// count as zero.
func (p *CachePolicy) ageValue() time.Duration {
	n, err := strconv.ParseUint(strings.TrimSpace(p.resHeaders.Get(HeaderAge)), 10, 32)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Age returns the age of the stored response at the given instant: the Age
// header value plus the resident time since the response was received.
// https://httpwg.org/specs/rfc7234.html#age.calculations
func (p *CachePolicy) Age(now time.Time) time.Duration {
	age := p.ageValue()
	if resident := now.Sub(p.responseTime); resident > 0 {
		age += resident
	}
	return age
}

// maxAge computes the freshness lifetime of the stored response, applying
// directive precedence: s-maxage (shared), max-age, Expires relative to the
// server date, and the Last-Modified heuristic.
// https://httpwg.org/specs/rfc7234.html#calculating.freshness.lifetime
func (p *CachePolicy) maxAge() time.Duration {
	if !p.IsStorable() || p.resDirectives.Has("no-cache") {
		return 0
	}

	// Shared responses with cookies are cacheable only when explicitly
	// allowed to be public or immutable.
	if p.opts.Shared && p.resHeaders.Get(HeaderSetCookie) != "" &&
		!p.resDirectives.Has("public") && !p.resDirectives.Has("immutable") {
		return 0
	}

	if strings.TrimSpace(p.resHeaders.Get(HeaderVary)) == "*" {
		return 0
	}

	if p.opts.Shared {
		if p.resDirectives.Has("proxy-revalidate") {
			return 0
		}
		// A shared cache must ignore Expires when s-maxage is present.
		if d, ok := p.resDirectives.Delta("s-maxage"); ok {
			return d
		}
	}

	// max-age overrides Expires.
	if d, ok := p.resDirectives.Delta("max-age"); ok {
		return d
	}

	var minTTL time.Duration
	if p.resDirectives.Has("immutable") {
		minTTL = p.opts.ImmutableMinTTL
	}

	serverDate := p.date()
	if expiresVal := p.resHeaders.Get(HeaderExpires); expiresVal != "" {
		// Invalid Expires dates, especially the value "0", represent a
		// time already in the past.
		expires, ok := parseHTTPDate(expiresVal)
		if !ok || expires.Before(serverDate) {
			return 0
		}
		return maxDuration(minTTL, expires.Sub(serverDate))
	}

	if lmVal := p.resHeaders.Get(HeaderLastModified); lmVal != "" {
		if lm, ok := parseHTTPDate(lmVal); ok && serverDate.After(lm) {
			heuristic := time.Duration(float64(serverDate.Sub(lm)) * p.opts.CacheHeuristic)
			return maxDuration(minTTL, heuristic)
		}
	}

	return minTTL
}

// TimeToLive returns the remaining fresh lifetime at the given instant. It is
// monotonically non-increasing in now and zero for non-storable responses.
// The stale-while-revalidate and stale-if-error windows do not extend it.
func (p *CachePolicy) TimeToLive(now time.Time) time.Duration {
	ttl := p.maxAge() - p.Age(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// IsStale reports whether the stored response has exhausted its fresh
// lifetime at the given instant.
func (p *CachePolicy) IsStale(now time.Time) bool {
	return p.TimeToLive(now) == 0
}

// CanServeStaleWhileRevalidate reports whether a stale response may still be
// served at the given instant while a revalidation is in flight.
// https://datatracker.ietf.org/doc/html/rfc5861#section-3
func (p *CachePolicy) CanServeStaleWhileRevalidate(now time.Time) bool {
	return p.inStaleWindow(now, "stale-while-revalidate")
}

// CanServeStaleIfError reports whether a stale response may be served at the
// given instant when revalidation fails with an error or 5xx.
// https://datatracker.ietf.org/doc/html/rfc5861#section-4
func (p *CachePolicy) CanServeStaleIfError(now time.Time) bool {
	return p.inStaleWindow(now, "stale-if-error")
}

// StaleLifetime returns the larger of the stale-serving extension windows, so
// storage tiers can keep an entry around beyond its fresh lifetime.
func (p *CachePolicy) StaleLifetime() time.Duration {
	var window time.Duration
	if d, ok := p.resDirectives.Delta("stale-while-revalidate"); ok {
		window = d
	}
	if d, ok := p.resDirectives.Delta("stale-if-error"); ok && d > window {
		window = d
	}
	return window
}

func (p *CachePolicy) inStaleWindow(now time.Time, directive string) bool {
	window, ok := p.resDirectives.Delta(directive)
	if !ok || !p.IsStorable() {
		return false
	}
	return p.Age(now) < p.maxAge()+window
}

// ResponseHeaders returns the header set a cached reply carries at the given
// instant: the stored set with Age rounded to the nearest second and Date moved
// so downstream caches compute the same age.
func (p *CachePolicy) ResponseHeaders(now time.Time) http.Header {
	headers := cloneHeader(p.resHeaders)
	headers.Set(HeaderAge, strconv.FormatInt(int64(math.Round(p.Age(now).Seconds())), 10))
	headers.Set(HeaderDate, formatHTTPDate(now))
	return headers
}

// ResultStatus is the outcome of matching a request against the policy.
type ResultStatus int

const (
	// ResultFresh indicates the stored response satisfies the request
	// without contacting the origin.
	ResultFresh ResultStatus = iota

	// ResultStale indicates the origin must be asked; the Result carries
	// the conditional request headers.
	ResultStale
)

// String returns the result status as a string.
func (s ResultStatus) String() string {
	switch s {
	case ResultFresh:
		return "ResultFresh"
	case ResultStale:
		return "ResultStale"
	}
	return "ResultStatus(" + strconv.Itoa(int(s)) + ")"
}

// Result is the decision for a subsequent request. Headers is populated for a
// fresh result, Conditional for a stale one.
type Result struct {
	Status      ResultStatus
	Headers     http.Header
	Conditional http.Header
}

// BeforeRequest decides whether a later request is satisfied by the stored
// response at the given instant. A fresh result carries the headers of the
// cached reply; a stale result carries the headers of the conditional request
// to send to the origin.
func (p *CachePolicy) BeforeRequest(req *http.Request, now time.Time) *Result {
	if p.satisfiesWithoutRevalidation(req, now) {
		return &Result{Status: ResultFresh, Headers: p.ResponseHeaders(now)}
	}
	return &Result{Status: ResultStale, Conditional: p.RevalidationHeaders(req)}
}

// satisfiesWithoutRevalidation applies the request-side freshness directives
// on top of the stored response's own constraints.
// https://httpwg.org/specs/rfc7234.html#constructing.responses.from.caches
func (p *CachePolicy) satisfiesWithoutRevalidation(req *http.Request, now time.Time) bool {
	reqDirectives := ParseDirectives(req.Header.Get(HeaderCacheControl))

	if reqDirectives.Has("no-cache") || strings.Contains(req.Header.Get(HeaderPragma), "no-cache") {
		return false
	}

	if d, ok := reqDirectives.Delta("max-age"); ok && (d == 0 || p.Age(now) > d) {
		return false
	}

	if d, ok := reqDirectives.Delta("min-fresh"); ok && p.TimeToLive(now) < d {
		return false
	}

	if p.IsStale(now) && !p.allowsStale(reqDirectives, now) {
		return false
	}

	return p.requestMatches(req, false)
}

// allowsStale reports whether a max-stale request directive relaxes the
// freshness requirement far enough to cover the stored response.
func (p *CachePolicy) allowsStale(reqDirectives *Directives, now time.Time) bool {
	if !reqDirectives.Has("max-stale") {
		return false
	}
	if p.resDirectives.Has("must-revalidate") {
		return false
	}
	if p.opts.Shared && (p.resDirectives.Has("proxy-revalidate") || p.resDirectives.Has("s-maxage")) {
		return false
	}
	if arg, ok := reqDirectives.Value("max-stale"); ok {
		excess, ok := parseDeltaSeconds(arg)
		return ok && p.Age(now)-p.maxAge() < excess
	}
	// Without an argument the client accepts a stale response of any age.
	return true
}

// requestMatches reports whether the presented request selects the stored
// response: same URI, host, and method, and matching values for every field
// nominated by the stored Vary header.
func (p *CachePolicy) requestMatches(req *http.Request, allowHead bool) bool {
	if p.uri != "" && req.URL != nil && p.uri != req.URL.String() {
		return false
	}
	if p.host != req.Host {
		return false
	}
	if req.Method != "" && p.method != req.Method && !(allowHead && req.Method == http.MethodHead) {
		return false
	}
	return p.varyMatches(req)
}

// varyMatches compares the request against the stored request for every field
// listed in the response Vary header. A Vary of "*" never matches.
// https://httpwg.org/specs/rfc7231.html#header.vary
func (p *CachePolicy) varyMatches(req *http.Request) bool {
	vary := p.resHeaders.Get(HeaderVary)
	if vary == "" {
		return true
	}
	if strings.TrimSpace(vary) == "*" {
		return false
	}
	for _, field := range splitCommaList(vary) {
		if req.Header.Get(field) != p.reqHeaders.Get(field) {
			return false
		}
	}
	return true
}

func maxDuration(x, y time.Duration) time.Duration {
	if x < y {
		return y
	}
	return x
}

// fingerprintRequest rebuilds the stored request for constructing successor
// policies.
func (p *CachePolicy) fingerprintRequest() *http.Request {
	u, err := url.Parse(p.uri)
	if err != nil {
		u = &url.URL{}
	}
	return &http.Request{
		Method: p.method,
		URL:    u,
		Host:   p.host,
		Header: cloneHeader(p.reqHeaders),
	}
}
