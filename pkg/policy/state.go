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

// State is the flat, serializable form of a CachePolicy. It captures the
// request fingerprint, the stored header set, the status, the response time,
// and the options; directive sets are reparsed on restore. Any encoding of
// State round-trips losslessly with respect to all policy queries.
type State struct {
	Method          string
	URI             string
	Host            string
	RequestHeaders  http.Header
	Status          int
	ResponseHeaders http.Header
	ResponseTime    time.Time
	Options         Options
}

// Export dumps the policy's logical state.
func (p *CachePolicy) Export() State {
	return State{
		Method:          p.method,
		URI:             p.uri,
		Host:            p.host,
		RequestHeaders:  cloneHeader(p.reqHeaders),
		Status:          p.status,
		ResponseHeaders: cloneHeader(p.resHeaders),
		ResponseTime:    p.responseTime,
		Options:         p.opts,
	}
}

// Restore rebuilds a policy from an exported state. Like construction it
// never fails.
func Restore(s State) *CachePolicy {
	reqHeaders := s.RequestHeaders
	if reqHeaders == nil {
		reqHeaders = http.Header{}
	}
	resHeaders := s.ResponseHeaders
	if resHeaders == nil {
		resHeaders = http.Header{}
	}
	p := &CachePolicy{
		opts:          s.Options,
		method:        s.Method,
		uri:           s.URI,
		host:          s.Host,
		reqHeaders:    cloneHeader(reqHeaders),
		status:        s.Status,
		resHeaders:    cloneHeader(resHeaders),
		responseTime:  s.ResponseTime,
		reqDirectives: ParseDirectives(reqHeaders.Get(HeaderCacheControl)),
		resDirectives: ParseDirectives(resHeaders.Get(HeaderCacheControl)),
	}
	// The stored header set already went through normalization when the
	// policy was first constructed; only the Pragma fallback has to be
	// re-derived.
	if _, hasCC := p.resHeaders[HeaderCacheControl]; !hasCC {
		if strings.Contains(p.resHeaders.Get(HeaderPragma), "no-cache") {
			p.resDirectives.add("no-cache", directiveValue{})
		}
	}
	return p
}
