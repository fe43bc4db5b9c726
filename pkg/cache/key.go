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
	"fmt"
	"net/http"
	"net/url"

	xxhash "github.com/cespare/xxhash/v2"
)

// keyPrefix namespaces cache keys in shared storage backends.
const keyPrefix = "policy-"

// Key identifies a stored exchange. The method is part of the key since only
// requests with the same method may be satisfied by the same entry.
type Key struct {
	Method string
	Host   string
	Path   string
	Query  string
	Scheme string
}

// NewKeyFromRequest creates a cache key from the given request.
func NewKeyFromRequest(req *http.Request) *Key {
	key := &Key{
		Method: req.Method,
		Host:   req.Host,
		Path:   req.URL.Path,
		Query:  req.URL.Query().Encode(),
		Scheme: req.URL.Scheme,
	}
	if key.Host == "" {
		key.Host = req.URL.Host
	}
	if key.Scheme == "" {
		if req.TLS == nil {
			key.Scheme = "http"
		} else {
			key.Scheme = "https"
		}
	}
	return key
}

// String encodes the cache key as string.
func (k Key) String() string {
	url := url.URL{
		Scheme:   k.Scheme,
		Host:     k.Host,
		Path:     k.Path,
		RawQuery: k.Query,
	}
	return fmt.Sprintf("%s%s:%s", keyPrefix, k.Method, url.String())
}

// Hash produces a stable hash of the key, consistent across restarts,
// architectures, and builds. Storage backends keying on 64-bit hashes should
// use it instead of String.
func (k Key) Hash() uint64 {
	return xxhash.Sum64String(k.String())
}
