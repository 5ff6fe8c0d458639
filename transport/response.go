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

package transport

// BodyKind selects which of ResponseSpec's body fields is populated.
type BodyKind int

const (
	// BodyNone carries no payload beyond what headers declare (1xx, 204,
	// or a HEAD/304 response where Content-Length is preserved but no
	// bytes are written).
	BodyNone BodyKind = iota
	// BodyFull is a single, already-buffered byte slice.
	BodyFull
	// BodyChunked streams via repeated SendChunk calls after SendResponse.
	BodyChunked
	// BodyFile streams a byte range of a file on disk.
	BodyFile
)

// FileRange identifies the byte range of a file to send.
type FileRange struct {
	Path   string
	Offset int64
	Length int64
}

// ResponseSpec is what the application callback hands to SendResponse.
type ResponseSpec struct {
	Status   int
	Headers  Headers
	Kind     BodyKind
	Full     []byte
	File     FileRange
	Trailers Headers // accepted, honored only where the transport supports it
}
