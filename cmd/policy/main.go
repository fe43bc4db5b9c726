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

// Command policy inspects an HTTP exchange and prints the cache decision:
// whether the response is storable, for how long it stays fresh, and the
// header set a cache would reply with. Request and response are read as raw
// HTTP/1.x dumps.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kacheio/policy/pkg/config"
	"github.com/kacheio/policy/pkg/policy"
	"github.com/kacheio/policy/pkg/utils/logger"
	"github.com/kacheio/policy/pkg/utils/version"
	"github.com/rs/zerolog/log"
)

const (
	configFileOption = "config.file"
	requestOption    = "request"
	responseOption   = "response"

	versionOption = "version"
	versionUsage  = "Print application version and exit."
)

// decision is the printed cache verdict.
type decision struct {
	Storable   bool        `json:"storable"`
	Stale      bool        `json:"stale"`
	TTLSeconds int64       `json:"ttl_seconds"`
	AgeSeconds int64       `json:"age_seconds"`
	Headers    http.Header `json:"headers"`
}

func main() {
	// Cleanup all flags registered via init() methods of 3rd-party libraries.
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var printVersion bool
	flag.BoolVar(&printVersion, versionOption, false, versionUsage)

	var configFile string
	flag.StringVar(&configFile, configFileOption, "", "Optional YAML config with cache policy options.")

	var requestFile string
	flag.StringVar(&requestFile, requestOption, "", "File holding the raw HTTP request.")

	var responseFile string
	flag.StringVar(&responseFile, responseOption, "", "File holding the raw HTTP response.")

	flag.Parse()

	if printVersion {
		_, _ = fmt.Fprintln(os.Stdout, version.Print("Policy"))
		return
	}

	opts := policy.DefaultOptions()
	if configFile != "" {
		ldr, err := config.NewLoader(configFile, false, 0)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error loading config from %s: %v\n", configFile, err)
			os.Exit(1)
		}
		cfg := ldr.Config()
		if err := cfg.Validate(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error validating config:\n%v\n", err)
			os.Exit(1)
		}
		logger.InitLogger(cfg.Log)
		opts = cfg.Cache.Options()
	} else {
		logger.InitLogger(nil)
	}

	if requestFile == "" || responseFile == "" {
		_, _ = fmt.Fprintln(os.Stderr, "both -request and -response are required")
		os.Exit(1)
	}

	req, err := readRequest(requestFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", requestFile).Msg("Reading request")
	}
	res, err := readResponse(responseFile, req)
	if err != nil {
		log.Fatal().Err(err).Str("file", responseFile).Msg("Reading response")
	}

	now := time.Now()
	p := policy.NewWithOptions(req, res, now, opts)

	d := decision{
		Storable:   p.IsStorable(),
		Stale:      p.IsStale(now),
		TTLSeconds: int64(p.TimeToLive(now) / time.Second),
		AgeSeconds: int64(p.Age(now) / time.Second),
		Headers:    p.ResponseHeaders(now),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		log.Fatal().Err(err).Msg("Encoding decision")
	}
}

// readRequest parses a raw HTTP/1.x request dump.
func readRequest(path string) (*http.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return http.ReadRequest(bufio.NewReader(f))
}

// readResponse parses a raw HTTP/1.x response dump.
func readResponse(path string, req *http.Request) (*http.Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	res, err := http.ReadResponse(bufio.NewReader(f), req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	return res, nil
}
