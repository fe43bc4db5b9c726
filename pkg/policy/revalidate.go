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
	"time"
)

// headersNotUpdatedOn304 holds the headers a 304 must not overwrite in the
// stored response.
// https://www.ietf.org/archive/id/draft-ietf-httpbis-cache-18.html (3.2)
var headersNotUpdatedOn304 = map[string]struct{}{
	"Content-Length":    {},
	"Content-Encoding":  {},
	"Transfer-Encoding": {},
	"Content-Range":     {},
}

// RevalidationHeaders builds the header set of a conditional request that
// revalidates the stored response: the presented request's headers without
// hop-by-hop fields, carrying If-None-Match for a stored Etag and
// If-Modified-Since for a stored Last-Modified.
// https://httpwg.org/specs/rfc7232.html#preconditions
func (p *CachePolicy) RevalidationHeaders(req *http.Request) http.Header {
	headers := dropHopByHopHeaders(req.Header)

	// Range requests are not understood; revalidate the full response.
	headers.Del(HeaderIfRange)

	if !p.requestMatches(req, true) || !p.IsStorable() {
		// Not the same resource, or it was never allowed to be stored:
		// any validation would resurrect the wrong entry.
		headers.Del(HeaderIfNoneMatch)
		headers.Del(HeaderIfModifiedSince)
		return headers
	}

	if etag := p.resHeaders.Get(HeaderEtag); etag != "" {
		if prior := headers.Get(HeaderIfNoneMatch); prior != "" {
			headers.Set(HeaderIfNoneMatch, prior+", "+etag)
		} else {
			headers.Set(HeaderIfNoneMatch, etag)
		}
	}

	// Weak validators are only usable on simple GET requests.
	forbidsWeakValidators := headers.Get("Accept-Ranges") != "" ||
		headers.Get(HeaderIfMatch) != "" ||
		headers.Get(HeaderIfUnmodifiedSince) != "" ||
		p.method != http.MethodGet

	if forbidsWeakValidators {
		headers.Del(HeaderIfModifiedSince)

		if inm := headers.Get(HeaderIfNoneMatch); inm != "" {
			var etags []string
			for _, etag := range splitCommaList(inm) {
				if strings.HasPrefix(etag, "W/") {
					continue
				}
				etags = append(etags, etag)
			}
			if len(etags) == 0 {
				headers.Del(HeaderIfNoneMatch)
			} else {
				headers.Set(HeaderIfNoneMatch, strings.Join(etags, ", "))
			}
		}
	} else if lm := p.resHeaders.Get(HeaderLastModified); lm != "" && headers.Get(HeaderIfModifiedSince) == "" {
		headers.Set(HeaderIfModifiedSince, lm)
	}

	return headers
}

// AfterResponse folds the origin's answer to a revalidation into a successor
// policy. A 304 with matching validators refreshes the stored entry in place
// and reports modified=false; any 2xx replaces the policy wholesale with
// modified=true; a 5xx leaves the stored policy intact so the caller may
// serve stale if stale-if-error permits.
func (p *CachePolicy) AfterResponse(req *http.Request, res *http.Response, now time.Time) (*CachePolicy, bool) {
	if res == nil || res.StatusCode >= 500 {
		return p, false
	}

	if res.StatusCode != http.StatusNotModified || !p.validatorsMatch(res) {
		// A mismatched 304 leaves the client no body to pair the new
		// validators with; it is handled as a full replacement.
		return NewWithOptions(req, res, now, p.opts), res.StatusCode != http.StatusNotModified
	}

	// Use the 304's header fields to replace the corresponding fields of
	// the stored response.
	headers := cloneHeader(p.resHeaders)
	for name, vals := range res.Header {
		if _, excluded := headersNotUpdatedOn304[name]; excluded {
			continue
		}
		if _, stored := headers[name]; !stored {
			continue
		}
		headers[name] = append([]string(nil), vals...)
	}

	refreshed := &http.Response{
		StatusCode: p.status,
		Header:     headers,
	}
	return NewWithOptions(p.fingerprintRequest(), refreshed, now, p.opts), false
}

// validatorsMatch checks whether the validators of a 304 select the stored
// response.
// https://httpwg.org/specs/rfc7234.html#freshening.responses
func (p *CachePolicy) validatorsMatch(res *http.Response) bool {
	newEtag := res.Header.Get(HeaderEtag)
	oldEtag := p.resHeaders.Get(HeaderEtag)

	// A strong new entity-tag selects only responses with the same strong
	// validator.
	if newEtag != "" && !strings.HasPrefix(newEtag, "W/") {
		return oldEtag != "" && strings.TrimPrefix(oldEtag, "W/") == newEtag
	}
	// A weak validator corresponds to a stored response whichever form it
	// was stored in.
	if newEtag != "" && oldEtag != "" {
		return strings.TrimPrefix(oldEtag, "W/") == strings.TrimPrefix(newEtag, "W/")
	}
	if oldLM := p.resHeaders.Get(HeaderLastModified); oldLM != "" {
		return oldLM == res.Header.Get(HeaderLastModified)
	}
	// With no validators on either side the 304 can only refer to the
	// stored response.
	return oldEtag == "" && res.Header.Get(HeaderEtag) == "" &&
		res.Header.Get(HeaderLastModified) == ""
}
