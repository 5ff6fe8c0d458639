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

// Package dateclock maintains the pre-formatted RFC 1123 Date header value,
// refreshed once a second by a background ticker and read lock-free from the
// request path. Every committed response needs this value; recomputing
// time.Now().Format on every request is measurable overhead at load.
package dateclock

import (
	"sync/atomic"
	"time"
)

var current atomic.Value // holds []byte

func init() {
	current.Store(format(time.Now()))
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for t := range ticker.C {
			current.Store(format(t))
		}
	}()
}

func format(t time.Time) []byte {
	return []byte(t.UTC().Format(http1TimeFormat))
}

// http1TimeFormat is the wire format RFC 9110 §5.6.7 requires for Date:.
const http1TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Bytes returns the cached "Date: <value>" payload (without the header name
// or trailing CRLF) as of the last tick.
func Bytes() []byte {
	return current.Load().([]byte)
}

// String is Bytes as a string, for header maps that want a string value.
func String() string {
	return string(Bytes())
}
