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

// Package bufpool pools the *bytes.Buffer instances the HTTP/1 writer
// uses to assemble response bytes (status line, header block) before a
// single Write to the socket.
package bufpool

import (
	"bytes"
	"sync"
)

const defaultCapacity = 4096

var pool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, defaultCapacity))
	},
}

// Acquire returns a reset *bytes.Buffer from the pool.
func Acquire() *bytes.Buffer {
	return pool.Get().(*bytes.Buffer)
}

// Release resets buf and returns it to the pool. A buffer that has
// grown far past defaultCapacity is dropped instead, so one oversized
// response doesn't pin a large allocation in the pool forever.
func Release(buf *bytes.Buffer) {
	if buf.Cap() > defaultCapacity*16 {
		return
	}
	buf.Reset()
	pool.Put(buf)
}
