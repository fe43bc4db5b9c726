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
	"strconv"
	"strings"
	"time"
)

// Directives is an ordered set of cache-control directives parsed from a
// header value. Directive names are lower-cased; a directive may carry an
// optional argument. Unknown directives are kept so the header can be
// re-emitted.
// Grammar (https://httpwg.org/specs/rfc7234.html#header.cache-control):
//
//	Cache-Control   = 1#cache-directive
//	cache-directive = token [ "=" ( token / quoted-string ) ]
type Directives struct {
	names  []string
	values map[string]directiveValue
}

// directiveValue holds the optional directive argument. An attached empty
// argument is distinct from no argument at all.
type directiveValue struct {
	arg    string
	hasArg bool
}

// ParseDirectives parses a comma-separated directive list. It never fails;
// malformed input yields whatever directives are recoverable. Empty tokens
// and surrounding whitespace are skipped, quoted arguments are unquoted with
// backslash escapes honored, and duplicate names take the last argument while
// keeping the original position.
func ParseDirectives(header string) *Directives {
	d := &Directives{values: make(map[string]directiveValue)}

	for i := 0; i < len(header); {
		// Skip separators and surrounding whitespace.
		for i < len(header) && (header[i] == ',' || header[i] == ' ' || header[i] == '\t') {
			i++
		}
		if i >= len(header) {
			break
		}

		start := i
		for i < len(header) && header[i] != ',' && header[i] != '=' {
			i++
		}
		name := strings.ToLower(strings.TrimSpace(header[start:i]))

		val := directiveValue{}
		if i < len(header) && header[i] == '=' {
			i++
			for i < len(header) && (header[i] == ' ' || header[i] == '\t') {
				i++
			}
			if i < len(header) && header[i] == '"' {
				val.arg, i = unquote(header, i)
				val.hasArg = true
				// Drop the token remainder up to the next separator.
				for i < len(header) && header[i] != ',' {
					i++
				}
			} else {
				argStart := i
				for i < len(header) && header[i] != ',' {
					i++
				}
				val.arg = strings.TrimSpace(header[argStart:i])
				val.hasArg = true
			}
		}

		if name == "" {
			continue
		}
		d.add(name, val)
	}
	return d
}

// unquote consumes a quoted-string starting at the opening quote and returns
// the unescaped content and the position after the closing quote. An
// unterminated string runs to the end of the input.
func unquote(s string, i int) (string, int) {
	var b strings.Builder
	i++ // opening quote
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			i++
		case '"':
			return b.String(), i + 1
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), i
}

// add inserts or overwrites a directive, keeping first-seen order.
func (d *Directives) add(name string, val directiveValue) {
	if _, ok := d.values[name]; !ok {
		d.names = append(d.names, name)
	}
	d.values[name] = val
}

// Has reports whether the directive is present, with or without argument.
func (d *Directives) Has(name string) bool {
	_, ok := d.values[name]
	return ok
}

// Value returns the directive argument. The second return is false if the
// directive is absent or carries no argument.
func (d *Directives) Value(name string) (string, bool) {
	v, ok := d.values[name]
	if !ok || !v.hasArg {
		return "", false
	}
	return v.arg, true
}

// Delta returns the directive argument interpreted as delta-seconds.
// Directives that are absent, have no argument, or have a bogus argument are
// treated as absent.
// https://httpwg.org/specs/rfc7234.html#delta-seconds
func (d *Directives) Delta(name string) (time.Duration, bool) {
	arg, ok := d.Value(name)
	if !ok {
		return 0, false
	}
	return parseDeltaSeconds(arg)
}

// Delete removes a directive.
func (d *Directives) Delete(name string) {
	if _, ok := d.values[name]; !ok {
		return
	}
	delete(d.values, name)
	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			break
		}
	}
}

// Empty reports whether no directives are present.
func (d *Directives) Empty() bool {
	return len(d.names) == 0
}

// String re-emits the directive list. Surviving directives keep their
// relative order; separators are normalized to ", ". Arguments containing
// separators or whitespace are quoted.
func (d *Directives) String() string {
	var b strings.Builder
	for i, name := range d.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		if v := d.values[name]; v.hasArg {
			b.WriteByte('=')
			if strings.ContainsAny(v.arg, ", \t\"") {
				b.WriteString(strconv.Quote(v.arg))
			} else {
				b.WriteString(v.arg)
			}
		}
	}
	return b.String()
}

// parseDeltaSeconds parses a non-negative integer number of seconds. Any
// invalid value is reported as absent.
func parseDeltaSeconds(s string) (time.Duration, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
