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

package http1

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/relaycore/httpd/common"
	"github.com/relaycore/httpd/internal/rescue"
	"github.com/relaycore/httpd/logger"
	"github.com/relaycore/httpd/metrics"
	"github.com/relaycore/httpd/transport"
)

// Conn runs the HTTP/1 connection task: sequential request/response over
// one socket, reused across requests until either side closes it. It is
// the sole reader and writer of the underlying net.Conn (spec §5).
type Conn struct {
	nc     net.Conn
	cfg    Config
	id     string
	tlsOn  bool
	tlsCS  *tls.ConnectionState
	buf    []byte // unconsumed bytes read off the socket
	body   *bodyReader
}

// NewConn wraps nc as an HTTP/1 connection task.
func NewConn(nc net.Conn, cfg Config) *Conn {
	c := &Conn{
		nc:  nc,
		cfg: cfg,
		id:  uuid.New().String(),
	}
	if tc, ok := nc.(*tls.Conn); ok {
		c.tlsOn = true
		cs := tc.ConnectionState()
		c.tlsCS = &cs
	}
	return c
}

// sendContinueEnabled reports whether a 100 Continue informational
// response should precede the handler call, honoring an
// "expect_continue_enabled" override in cfg.Extra when present; absent
// or unparseable, spec.md's ambient default (always on) applies.
func (c *Conn) sendContinueEnabled() bool {
	if _, ok := c.cfg.Extra["expect_continue_enabled"]; !ok {
		return true
	}
	enabled, err := c.cfg.Extra.GetBool("expect_continue_enabled")
	if err != nil {
		return true
	}
	return enabled
}

// fill reads one block of bytes off the socket and appends it to buf.
func (c *Conn) fill() error {
	c.nc.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	tmp := make([]byte, common.ReadWriteBlockSize)
	n, err := c.nc.Read(tmp)
	if n > 0 {
		c.buf = append(c.buf, tmp[:n]...)
	}
	if n == 0 && err != nil {
		return err
	}
	return nil
}

// readExact returns exactly n bytes, refilling from the socket as
// needed.
func (c *Conn) readExact(n int) ([]byte, error) {
	for len(c.buf) < n {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	out := c.buf[:n]
	c.buf = c.buf[n:]
	return out, nil
}

// readSome returns between 1 and n buffered/freshly-read bytes, blocking
// until at least one byte is available or the read times out.
func (c *Conn) readSome(n int) ([]byte, error) {
	if len(c.buf) == 0 {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	if n > len(c.buf) {
		n = len(c.buf)
	}
	out := c.buf[:n]
	c.buf = c.buf[n:]
	return out, nil
}

// Serve drives the keep-alive request loop, invoking handler once per
// request, until the connection closes or a non-recoverable error ends
// it (spec §4.1 Keep-alive, §5 Suspension points).
func (c *Conn) Serve(ctx context.Context, handler transport.Handler) {
	defer c.nc.Close()

	metrics.ConnectionsActive.WithLabelValues("http1").Inc()
	defer metrics.ConnectionsActive.WithLabelValues("http1").Dec()

	for {
		pr, err := c.parseRequest(c.tlsOn)
		if err != nil {
			c.writeErrorResponse(err)
			return
		}
		pr.req.PeerAddr = c.nc.RemoteAddr()
		pr.req.LocalAddr = c.nc.LocalAddr()
		pr.req.TLSState = c.tlsCS
		pr.req.ConnID = c.id

		c.body = newBodyReader(c, pr.mode, pr.contentLength)

		if pr.expectContinue && c.sendContinueEnabled() {
			if err := c.writeInformational(100, nil); err != nil {
				return
			}
		}

		w := newResponder(c, pr)
		base, exCtx := transport.NewBase(ctx, pr.req, w)

		if err := rescue.Call(func() { handler(exCtx, &exchange{Base: base}) }); err != nil {
			logger.Errorf("http1 conn %s: %v", c.id, err)
		}

		if !w.headersSent {
			_ = base.SendResponse(exCtx, transport.ResponseSpec{Status: 500, Kind: transport.BodyNone})
		}
		metrics.RequestsTotal.WithLabelValues("http1", metrics.StatusClass(w.status)).Inc()

		// Drain any unread body bytes so the next request-line parse
		// starts at the right offset.
		if err := c.body.discard(); err != nil {
			return
		}

		if !pr.keepAlive || w.connectionClose {
			return
		}
	}
}

// exchange adapts transport.Base to the transport.Exchange interface;
// Base already implements every method by value receiver on *Base, so
// this wrapper only exists to give http1 a named concrete type to hand
// to the callback.
type exchange struct {
	*transport.Base
}

var _ io.Closer = (*Conn)(nil)

// Close closes the underlying socket immediately (used by GOAWAY-style
// shutdown paths and tests).
func (c *Conn) Close() error {
	return c.nc.Close()
}
