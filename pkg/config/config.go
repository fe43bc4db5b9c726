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

package config

import (
	"errors"
	"time"

	"github.com/kacheio/policy/pkg/policy"
	"github.com/kacheio/policy/pkg/store"
)

var errInvalidCacheHeuristic = errors.New("cache_heuristic must be between 0 and 1")

// Configuration is the root configuration.
type Configuration struct {
	Cache *Cache        `yaml:"cache"`
	Store *store.Config `yaml:"store"`

	API *API `yaml:"api"`
	Log *Log `yaml:"logging"`
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Cache != nil {
		return c.Cache.Validate()
	}
	return nil
}

// Cache holds the cache policy configuration. Absent values fall back to the
// defaults of a shared RFC-compliant cache.
type Cache struct {
	// Shared models a shared cache; set to false for a private user-agent
	// cache.
	Shared *bool `yaml:"shared,omitempty"`

	// CacheHeuristic is the fraction of the Last-Modified distance used
	// as heuristic freshness lifetime.
	CacheHeuristic float64 `yaml:"cache_heuristic,omitempty"`

	// ImmutableMinTTL is the minimum lifetime of immutable responses,
	// parsed as a Go duration. "0" disables the immutable extension.
	ImmutableMinTTL string `yaml:"immutable_min_ttl,omitempty"`

	// IgnoreCargoCult enables repair of the legacy pre-check/post-check
	// poison pattern.
	IgnoreCargoCult bool `yaml:"ignore_cargo_cult,omitempty"`

	// TrustServerDate anchors lifetimes to the response Date header when
	// plausible.
	TrustServerDate *bool `yaml:"trust_server_date,omitempty"`
}

// Validate validates the cache config.
func (c *Cache) Validate() error {
	if c.CacheHeuristic < 0 || c.CacheHeuristic > 1 {
		return errInvalidCacheHeuristic
	}
	return nil
}

// Options resolves the config into policy options.
func (c *Cache) Options() policy.Options {
	opts := policy.DefaultOptions()
	if c == nil {
		return opts
	}
	if c.Shared != nil {
		opts.Shared = *c.Shared
	}
	if c.CacheHeuristic > 0 {
		opts.CacheHeuristic = c.CacheHeuristic
	}
	if c.ImmutableMinTTL != "" {
		if ttl, err := time.ParseDuration(c.ImmutableMinTTL); err == nil {
			opts.ImmutableMinTTL = ttl
		}
	}
	opts.IgnoreCargoCult = c.IgnoreCargoCult
	if c.TrustServerDate != nil {
		opts.TrustServerDate = *c.TrustServerDate
	}
	return opts
}

// API holds the API configuration.
type API struct {
	Port   int    `yaml:"port"`
	Prefix string `yaml:"prefix,omitempty"`
	ACL    string `yaml:"acl,omitempty"`
	Debug  bool   `yaml:"debug,omitempty"`
}

// GetPrefix returns the API prefix as specified in the configuration.
// Default prefix is '/api'.
func (a *API) GetPrefix() string {
	prefix := "/api"
	if len(a.Prefix) > 0 {
		prefix = a.Prefix
	}
	return prefix
}

// Log holds the logger configuration.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	Color  bool   `yaml:"color,omitempty"`

	FilePath   string `yaml:"file,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}
