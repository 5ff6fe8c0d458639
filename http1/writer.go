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
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/relaycore/httpd/internal/bufpool"
	"github.com/relaycore/httpd/transport"
)

// responder implements transport.Sink over a Conn's socket, applying
// spec §4.1's Content-Length policy and chunked/file output.
type responder struct {
	c               *Conn
	pr              *parsedRequest
	headersSent     bool
	chunkedOut      bool
	connectionClose bool
	status          int
}

func newResponder(c *Conn, pr *parsedRequest) *responder {
	return &responder{c: c, pr: pr}
}

func reasonPhrase(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Status"
}

// WriteHeaders applies the Content-Length policy of spec §4.1: omitted
// for 1xx/204; preserved verbatim (from the caller's own headers) for
// HEAD and 304 when suppressBody is set; otherwise set to the exact
// byte count that is about to be written.
func (r *responder) WriteHeaders(status int, headers transport.Headers, bodyLen int64, suppressBody bool) error {
	r.headersSent = true
	r.status = status

	switch {
	case status < 200 || status == 204:
		headers.Del("content-length")
	case suppressBody:
		// Caller's own Content-Length (if any) passes through untouched.
	case bodyLen < 0:
		headers.Set("transfer-encoding", "chunked")
		headers.Del("content-length")
		r.chunkedOut = true
	default:
		headers.Set("content-length", strconv.FormatInt(bodyLen, 10))
		headers.Del("transfer-encoding")
	}

	if !r.pr.keepAlive {
		headers.Set("connection", "close")
		r.connectionClose = true
	}
	if v, ok := headers.Get("connection"); ok && v == "close" {
		r.connectionClose = true
	}

	buf := bufpool.Acquire()
	defer bufpool.Release(buf)

	fmt.Fprintf(buf, "%s %d %s\r\n", r.pr.req.Version, status, reasonPhrase(status))
	for _, h := range headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")

	_, err := r.c.nc.Write(buf.Bytes())
	return err
}

func (r *responder) WriteBodyFull(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := r.c.nc.Write(data)
	return err
}

// WriteChunk emits one "<hex-size>\r\n<bytes>\r\n" frame; an empty
// chunk commits the "0\r\n\r\n" terminator.
func (r *responder) WriteChunk(data []byte) error {
	buf := bufpool.Acquire()
	defer bufpool.Release(buf)

	if len(data) == 0 {
		buf.WriteString("0\r\n\r\n")
	} else {
		fmt.Fprintf(buf, "%x\r\n", len(data))
		buf.Write(data)
		buf.WriteString("\r\n")
	}
	_, err := r.c.nc.Write(buf.Bytes())
	return err
}

// WriteFile streams the byte range via io.Copy, which on Linux uses
// sendfile(2) automatically when the destination is a *net.TCPConn and
// the source is an *os.File (io.ReaderFrom/io.WriterTo fast path);
// falls back to a buffered copy otherwise.
func (r *responder) WriteFile(f transport.FileRange) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return err
	}
	if f.Offset+f.Length > info.Size() {
		return fmt.Errorf("http1: file range exceeds file size")
	}
	if _, err := fh.Seek(f.Offset, io.SeekStart); err != nil {
		return err
	}

	_, err = io.CopyN(r.c.nc, fh, f.Length)
	return err
}

func (r *responder) WriteInformational(status int, headers transport.Headers) error {
	buf := bufpool.Acquire()
	defer bufpool.Release(buf)

	fmt.Fprintf(buf, "%s %d %s\r\n", r.pr.req.Version, status, reasonPhrase(status))
	for _, h := range headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")

	_, err := r.c.nc.Write(buf.Bytes())
	return err
}

func (r *responder) ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	return r.c.body.ReadBody(ctx, maxBytes, readLength, timeout)
}

// RequestUpgrade writes the 101 response and marks the connection for
// the caller to take over raw byte handling afterward (the WebSocket
// frame protocol itself is out of scope).
func (r *responder) RequestUpgrade(ctx context.Context, protocol string, opts map[string]any) error {
	headers := transport.Headers{
		{Name: "connection", Value: "Upgrade"},
		{Name: "upgrade", Value: protocol},
	}
	r.connectionClose = true
	return r.WriteInformational(101, headers)
}

// writeErrorResponse best-effort writes a status-only response for a
// ProtocolError encountered while parsing, then the caller closes the
// socket.
func (c *Conn) writeErrorResponse(err error) {
	pe, ok := err.(*ProtocolError)
	if !ok {
		return
	}
	buf := bufpool.Acquire()
	defer bufpool.Release(buf)

	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\nconnection: close\r\ncontent-length: 0\r\n\r\n", pe.Status, reasonPhrase(pe.Status))
	_, _ = c.nc.Write(buf.Bytes())
}

func (c *Conn) writeInformational(status int, headers transport.Headers) error {
	buf := bufpool.Acquire()
	defer bufpool.Release(buf)

	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", status, reasonPhrase(status))
	for _, h := range headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")

	_, err := c.nc.Write(buf.Bytes())
	return err
}
