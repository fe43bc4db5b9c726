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
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"

	"github.com/kacheio/policy/pkg/policy"
)

// EntryStatus is the state of a cached response.
type EntryStatus int

const (
	// EntryInvalid indicates that the cached response is not usable or valid (cache miss).
	EntryInvalid EntryStatus = iota

	// EntryOk indicates that the cached response is valid and can be used (cache hit).
	EntryOk

	// EntryRequiresValidation indicates that the cached response needs to be validated.
	EntryRequiresValidation

	// EntryLookupError indicates an error occurred while retrieving the response.
	EntryLookupError
)

// String returns the entry status as a string.
func (s EntryStatus) String() string {
	switch s {
	case EntryOk:
		return "EntryOk"
	case EntryInvalid:
		return "EntryInvalid"
	case EntryRequiresValidation:
		return "EntryRequiresValidation"
	case EntryLookupError:
		return "EntryLookupError"
	}
	return fmt.Sprintf("Unknown state: %s", strconv.Itoa(int(s)))
}

// Entry is the cache entry: the exported policy state paired with the body of
// the stored response. The policy owns the stored header set; the body is
// opaque to it.
type Entry struct {
	// Policy is the serialized cache policy.
	Policy policy.State

	// Body is the stored response body.
	Body []byte
}

// Encode encodes an entry into a byte array.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEntry decodes a byte array into an Entry.
func DecodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
