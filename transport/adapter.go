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
	"sync/atomic"
	"time"

	"github.com/relaycore/httpd/internal/dateclock"
)

// Sink is what a transport (http1's connection loop, http2's stream
// worker) implements so Base can drive the actual wire I/O while
// enforcing the adapter rules identically for both.
type Sink interface {
	// WriteHeaders commits the status line and header block. bodyLen is
	// the exact byte count that will follow (0 for BodyNone), or -1 for
	// a chunked/streamed response whose length isn't known yet.
	// suppressBody tells the sink to keep the caller's own
	// Content-Length header (if any) instead of overriding it with
	// bodyLen, per the HEAD/204/304 rule.
	WriteHeaders(status int, headers Headers, bodyLen int64, suppressBody bool) error
	WriteBodyFull(data []byte) error
	WriteChunk(data []byte) error // empty data commits the terminator
	WriteFile(f FileRange) error
	WriteInformational(status int, headers Headers) error
	ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) (data []byte, more bool, err error)
	RequestUpgrade(ctx context.Context, protocol string, opts map[string]any) error
}

type ownerKeyType struct{}

var ownerKey = ownerKeyType{}

// Base implements the shared adapter rules of spec §4.6 on top of a
// transport-supplied Sink: task-ownership checks, the double-send guard,
// HEAD/204/304 body suppression, and Date header injection.
type Base struct {
	req    *Request
	sink   Sink
	token  *int
	sent   atomic.Bool
	opened atomic.Bool // true once a chunked response's headers were sent
}

// NewBase constructs a Base bound to req and sink, returning it along
// with a context the owning goroutine must pass to every subsequent
// Exchange call.
func NewBase(parent context.Context, req *Request, sink Sink) (*Base, context.Context) {
	token := new(int)
	b := &Base{req: req, sink: sink, token: token}
	return b, context.WithValue(parent, ownerKey, token)
}

func (b *Base) checkOwner(ctx context.Context) error {
	tok, _ := ctx.Value(ownerKey).(*int)
	if tok != b.token {
		return ErrWrongTask
	}
	return nil
}

func (b *Base) Request() *Request {
	return b.req
}

func (b *Base) ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	if err := b.checkOwner(ctx); err != nil {
		return nil, false, err
	}
	return b.sink.ReadBody(ctx, maxBytes, readLength, timeout)
}

// suppressesBody reports whether status/method combination discards
// body bytes while still emitting the caller's declared headers
// (including any explicit Content-Length).
func suppressesBody(method string, status int) bool {
	if method == "HEAD" {
		return true
	}
	switch status {
	case 204, 304:
		return true
	}
	if status >= 100 && status < 200 {
		return true
	}
	return false
}

func withDate(headers Headers) Headers {
	if headers.Has("date") {
		return headers
	}
	out := make(Headers, 0, len(headers)+1)
	out = append(out, Header{Name: "date", Value: dateclock.String()})
	out = append(out, headers...)
	return out
}

func (b *Base) SendResponse(ctx context.Context, spec ResponseSpec) error {
	if err := b.checkOwner(ctx); err != nil {
		return err
	}
	if !b.sent.CompareAndSwap(false, true) {
		return ErrAlreadySent
	}

	headers := withDate(spec.Headers)
	suppress := suppressesBody(b.req.Method, spec.Status)

	switch spec.Kind {
	case BodyChunked:
		if err := b.sink.WriteHeaders(spec.Status, headers, -1, suppress); err != nil {
			return err
		}
		if !suppress {
			b.opened.Store(true)
		}
		return nil

	case BodyFile:
		if err := b.sink.WriteHeaders(spec.Status, headers, spec.File.Length, suppress); err != nil {
			return err
		}
		if suppress {
			return nil
		}
		return b.sink.WriteFile(spec.File)

	default: // BodyNone, BodyFull
		if err := b.sink.WriteHeaders(spec.Status, headers, int64(len(spec.Full)), suppress); err != nil {
			return err
		}
		if suppress || spec.Kind == BodyNone {
			return nil
		}
		return b.sink.WriteBodyFull(spec.Full)
	}
}

func (b *Base) SendChunk(ctx context.Context, data []byte) error {
	if err := b.checkOwner(ctx); err != nil {
		return err
	}
	if !b.opened.Load() {
		return ErrNotChunked
	}
	return b.sink.WriteChunk(data)
}

func (b *Base) SendInformational(ctx context.Context, status int, headers Headers) error {
	if err := b.checkOwner(ctx); err != nil {
		return err
	}
	if b.sent.Load() {
		return ErrAlreadySent
	}
	if status < 100 || status >= 200 {
		return ErrUpgradeNotSupported
	}
	if b.req.Version == VersionHTTP10 {
		return ErrUpgradeNotSupported
	}
	return b.sink.WriteInformational(status, withDate(headers))
}

func (b *Base) RequestUpgrade(ctx context.Context, protocol string, opts map[string]any) error {
	if err := b.checkOwner(ctx); err != nil {
		return err
	}
	if !b.sent.CompareAndSwap(false, true) {
		return ErrAlreadySent
	}
	if protocol != "websocket" || b.req.Version != VersionHTTP11 {
		return ErrUpgradeNotSupported
	}
	return b.sink.RequestUpgrade(ctx, protocol, opts)
}
