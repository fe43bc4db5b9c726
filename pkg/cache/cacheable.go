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

package cache

import (
	"net/http"

	"github.com/kacheio/policy/pkg/policy"
)

// conditionalHeaders holds the request preconditions.
// https://httpwg.org/specs/rfc7232.html#preconditions
var conditionalHeaders = []string{
	policy.HeaderIfRange,
	policy.HeaderIfMatch,
	policy.HeaderIfNoneMatch,
	policy.HeaderIfModifiedSince,
	policy.HeaderIfUnmodifiedSince,
}

// IsCacheableRequest checks if a request can be served from cache at all.
// Storability of the response is decided by the policy; this gate only skips
// requests the cache cannot satisfy, such as writes and client-side
// preconditions, which are passed through to the origin untouched.
func IsCacheableRequest(req *http.Request) bool {
	for _, h := range conditionalHeaders {
		if _, ok := req.Header[h]; ok {
			return false
		}
	}

	return req.URL != nil && req.URL.Path != "" &&
		(req.Method == http.MethodGet || req.Method == http.MethodHead)
}
