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

// Package api exposes a small management surface for an embedded cache:
// stored keys, purging, and build information.
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/kacheio/policy/pkg/cache"
	"github.com/kacheio/policy/pkg/config"
	"github.com/kacheio/policy/pkg/utils/version"
	"github.com/rs/zerolog/log"
)

const (
	ErrMsgUnauthorized = "Not authorized to access the requested resource"
)

// API is the root API structure.
type API struct {
	// config is the API configuration.
	config config.API

	// router is the API router.
	router *mux.Router

	// cache is the managed http cache.
	cache *cache.HttpCache

	// allowedIPs is the access control list containing the IPs allowed to
	// access the API. If the list is empty, the IP filter is not active
	// and every request is allowed.
	allowedIPs map[string]struct{}
}

// New creates a new API for the given cache.
func New(cfg config.API, c *cache.HttpCache) (*API, error) {
	api := &API{
		config:     cfg,
		router:     mux.NewRouter(),
		cache:      c,
		allowedIPs: make(map[string]struct{}),
	}
	api.createRoutes()

	if cfg.Debug {
		DebugHandler{}.Append(api.router)
	}

	// Parse allowed IPs from config.
	if ips := strings.Trim(cfg.ACL, ","); len(ips) > 0 {
		for _, ip := range strings.Split(ips, ",") {
			if ipp := net.ParseIP(strings.TrimSpace(ip)); ipp != nil {
				api.allowedIPs[ipp.String()] = struct{}{}
			}
		}
	}

	return api, nil
}

// Run starts the API server.
func (a *API) Run() {
	port := fmt.Sprintf(":%d", a.config.Port)
	log.Debug().Str("port", port).Str("prefix", a.config.GetPrefix()).Msg("Starting API server")

	if err := http.ListenAndServe(port, a); err != nil {
		log.Fatal().Err(err).Msg("Starting API server")
	}
}

// ServeHTTP serves the API requests.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// RegisterRoute registers a new handler at the given path.
func (a *API) RegisterRoute(method string, path string, handler http.HandlerFunc) {
	a.router.HandleFunc(path, handler).Methods(method)
}

func (a *API) createRoutes() {
	prefix := a.config.GetPrefix()
	a.RegisterRoute(http.MethodGet, prefix+"/version", a.ipFilter(version.Handler))
	a.RegisterRoute(http.MethodGet, prefix+"/cache/keys", a.ipFilter(a.keysHandler))
	a.RegisterRoute(http.MethodDelete, prefix+"/cache/keys/purge", a.ipFilter(a.purgeHandler))
}

// keysHandler lists the stored cache keys.
func (a *API) keysHandler(w http.ResponseWriter, r *http.Request) {
	keys := a.cache.Keys(r.Context())
	if keys == nil {
		keys = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(keys); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// purgeHandler removes entries matching the key or pattern query parameter;
// /cache/keys/purge?pattern=...
func (a *API) purgeHandler(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if key := r.URL.Query().Get("key"); key != "" {
		pattern = key
	}
	if err := a.cache.Purge(r.Context(), pattern); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ipFilter is a middleware that checks the original IP against the
// configured access control list and allows or blocks the request.
func (a *API) ipFilter(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(a.allowedIPs) == 0 {
			next(w, r)
			return
		}

		ip := originalIP(r)
		if _, ok := a.allowedIPs[ip]; !ok {
			http.Error(w, ErrMsgUnauthorized, http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// originalIP finds the originating client IP.
func originalIP(req *http.Request) string {
	addr := ""
	// The default is the originating IP, but better options usually exist
	// behind proxies.
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		addr = host
	}
	// If we have a forwarded-for header, take the address from there.
	if xff := strings.Trim(req.Header.Get("X-Forwarded-For"), ","); len(xff) > 0 {
		addrs := strings.Split(xff, ",")
		last := addrs[len(addrs)-1]
		if ip := net.ParseIP(strings.TrimSpace(last)); ip != nil {
			return ip.String()
		}
	}
	// Otherwise, parse the X-Real-Ip header if it exists.
	if xri := req.Header.Get("X-Real-Ip"); len(xri) > 0 {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return addr
}
