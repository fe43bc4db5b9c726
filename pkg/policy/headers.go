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

const (
	// Common cache related HTTP headers.

	HeaderCacheControl = "Cache-Control"
	HeaderDate         = "Date"
	HeaderPragma       = "Pragma"
	HeaderVary         = "Vary"

	HeaderAuthorization = "Authorization"

	// Request headers.
	HeaderIfRange           = "If-Range"
	HeaderIfMatch           = "If-Match"
	HeaderIfNoneMatch       = "If-None-Match"
	HeaderIfModifiedSince   = "If-Modified-Since"
	HeaderIfUnmodifiedSince = "If-Unmodified-Since"

	// Response headers.
	HeaderAge          = "Age"
	HeaderEtag         = "Etag"
	HeaderExpires      = "Expires"
	HeaderLastModified = "Last-Modified"
	HeaderSetCookie    = "Set-Cookie"
	HeaderWarning      = "Warning"
)

// hopByHopHeaders holds the headers that apply to a single transport hop and
// must never be stored or forwarded.
// https://httpwg.org/specs/rfc7230.html#header.connection
var hopByHopHeaders = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Te":                {},
	"Trailer":           {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
}

// dropHopByHopHeaders returns a copy of the header set with hop-by-hop
// headers, every field named in the Connection header, and stale 1xx Warning
// entries removed.
func dropHopByHopHeaders(header http.Header) http.Header {
	out := make(http.Header, len(header))
	for name, vals := range header {
		if _, ok := hopByHopHeaders[name]; ok {
			continue
		}
		if strings.HasPrefix(name, "Proxy-") {
			continue
		}
		out[name] = append([]string(nil), vals...)
	}

	for _, token := range splitCommaList(header.Get("Connection")) {
		out.Del(token)
	}

	if warning := out.Get(HeaderWarning); warning != "" {
		var keep []string
		for _, w := range strings.Split(warning, ",") {
			if t := strings.TrimSpace(w); len(t) >= 3 && t[0] == '1' {
				continue // 1xx warnings are invalidated by storage.
			}
			keep = append(keep, strings.TrimSpace(w))
		}
		if len(keep) == 0 {
			out.Del(HeaderWarning)
		} else {
			out.Set(HeaderWarning, strings.Join(keep, ", "))
		}
	}

	return out
}

// cloneHeader returns a deep copy of the header set.
func cloneHeader(header http.Header) http.Header {
	out := make(http.Header, len(header))
	for name, vals := range header {
		out[name] = append([]string(nil), vals...)
	}
	return out
}

// splitCommaList splits a comma-separated header value into trimmed,
// non-empty tokens.
func splitCommaList(header string) []string {
	var tokens []string
	for _, t := range strings.Split(header, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// httpRFC850 is time.RFC850 with the time zone hard-coded to GMT.
var httpRFC850 = "Monday, 02-Jan-06 15:04:05 GMT"

// parseHTTPDate parses a datetime header value.
// Acceptable Date/Time formats per
// https://datatracker.ietf.org/doc/html/rfc7231#section-7.1.1.1:
//
//	Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate, RFC1123
//	Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format
//	Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format
func parseHTTPDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range [...]string{http.TimeFormat, httpRFC850, time.ANSIC} {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatHTTPDate formats an instant as an IMF-fixdate header value.
func formatHTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// repairCargoCult neutralizes the legacy pre-check/post-check pattern. When
// both attributes appear in the response cache-control, the poison tokens and
// the no-store/no-cache tokens are deleted, the header is re-emitted from the
// survivors, and the Pragma and Expires response headers are dropped.
// Origins carrying this pattern copied it without understanding caching, so
// their no-store/no-cache must not be taken literally.
func repairCargoCult(directives *Directives, header http.Header) {
	if !directives.Has("pre-check") || !directives.Has("post-check") {
		return
	}
	directives.Delete("pre-check")
	directives.Delete("post-check")
	directives.Delete("no-cache")
	directives.Delete("no-store")

	if directives.Empty() {
		header.Del(HeaderCacheControl)
	} else {
		header.Set(HeaderCacheControl, directives.String())
	}
	header.Del(HeaderPragma)
	header.Del(HeaderExpires)
}
