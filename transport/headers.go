// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport defines the request view, response spec, and shared
// adapter contract that both the http1 and http2 transports present to
// the application callback identically.
package transport

import "strings"

// Header is one (lowercase-name, value) pair. A request or response may
// carry the same name more than once; order and duplicates are
// preserved, matching the wire.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered sequence of Header pairs.
type Headers []Header

// Add appends a header, lowercasing the name.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: strings.ToLower(name), Value: value})
}

// Get returns the first value for name (case-insensitive), or "" with ok
// false if absent.
func (h Headers) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, hdr := range h {
		if hdr.Name == name {
			return hdr.Value, true
		}
	}
	return "", false
}

// Values returns every value for name, in wire order.
func (h Headers) Values(name string) []string {
	name = strings.ToLower(name)
	var out []string
	for _, hdr := range h {
		if hdr.Name == name {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Has reports whether name is present at all.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Del removes every header named name.
func (h *Headers) Del(name string) {
	name = strings.ToLower(name)
	out := (*h)[:0]
	for _, hdr := range *h {
		if hdr.Name != name {
			out = append(out, hdr)
		}
	}
	*h = out
}

// Set replaces every existing value for name with a single value.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}
