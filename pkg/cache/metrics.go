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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cache counters.
type Metrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	validations prometheus.Counter
	stores      prometheus.Counter
}

// NewMetrics creates the cache metrics and registers them with the given
// registerer. A nil registerer keeps the metrics unregistered, which is
// useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Number of lookups satisfied by a fresh stored response.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Number of lookups with no usable stored response.",
		}),
		validations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "cache",
			Name:      "validations_total",
			Help:      "Number of lookups that required revalidation at the origin.",
		}),
		stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "cache",
			Name:      "stores_total",
			Help:      "Number of responses written to the cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.validations, m.stores)
	}
	return m
}
