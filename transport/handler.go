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

import (
	"context"
	"time"
)

// Exchange is the handle the application callback drives a single
// request/response cycle through. Both http1 and http2 hand the
// callback an Exchange built on the same Base implementation so its
// behavior is identical across transports.
type Exchange interface {
	// Request returns the view built for this exchange.
	Request() *Request

	// ReadBody reads the next part of the request body, returning at
	// most min(maxBytes, readLength) bytes in one call. It blocks
	// up to timeout waiting for data. more is true when further reads
	// may return additional bytes.
	ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) (data []byte, more bool, err error)

	// SendResponse commits the response. For BodyChunked it writes
	// headers only; call SendChunk for each chunk afterward.
	SendResponse(ctx context.Context, spec ResponseSpec) error

	// SendChunk writes one chunk of a BodyChunked response. An empty
	// chunk ends the response.
	SendChunk(ctx context.Context, data []byte) error

	// SendInformational writes a 1xx interim response. Rejected on
	// HTTP/1.0.
	SendInformational(ctx context.Context, status int, headers Headers) error

	// RequestUpgrade asks the transport to switch protocols. Only the
	// WebSocket upgrade is recognized, and only on HTTP/1.1.
	RequestUpgrade(ctx context.Context, protocol string, opts map[string]any) error
}

// Handler is the application callback, invoked once per request.
type Handler func(ctx context.Context, ex Exchange)
