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
	"bytes"
	"strconv"
	"strings"

	"github.com/relaycore/httpd/internal/linescan"
	"github.com/relaycore/httpd/transport"
)

// bodyMode is the body-reading strategy decided from the request's
// headers, per spec §4.1.
type bodyMode int

const (
	bodyNone bodyMode = iota
	bodyFixed
	bodyChunked
)

// parsedRequest holds the request view plus the body-framing decisions
// the connection loop needs that don't belong on transport.Request.
type parsedRequest struct {
	req            *transport.Request
	mode           bodyMode
	contentLength  int64
	keepAlive      bool
	expectContinue bool
}

// readLine returns the next line (terminator included), growing and
// refilling buf from the socket as needed, and fails with tooLongErr
// once the unterminated prefix exceeds maxLen.
func (c *Conn) readLine(maxLen int, tooLongErr error) ([]byte, error) {
	for {
		sc := linescan.NewScanner(c.buf)
		if sc.Scan() {
			line := sc.Bytes()
			if len(line) > 0 && line[len(line)-1] == '\n' {
				if len(line) > maxLen {
					return nil, tooLongErr
				}
				c.buf = c.buf[len(line):]
				return line, nil
			}
		}
		if len(c.buf) > maxLen {
			return nil, tooLongErr
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

func trimCRLF(b []byte) []byte {
	b = bytes.TrimSuffix(b, linescan.CharLF)
	b = bytes.TrimSuffix(b, linescan.CharCR)
	return b
}

// parseRequest reads and validates one request-line/header block,
// leaving the connection buffer positioned at the first body byte.
func (c *Conn) parseRequest(tlsOn bool) (*parsedRequest, error) {
	line, err := c.readLine(c.cfg.MaxRequestLineLength, errRequestLineTooLong)
	if err != nil {
		return nil, err
	}
	line = trimCRLF(line)

	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return nil, errMalformedRequest
	}
	method, target, version := parts[0], parts[1], parts[2]
	if method == "" {
		return nil, errMalformedRequest
	}

	var ver transport.Version
	switch version {
	case "HTTP/1.1":
		ver = transport.VersionHTTP11
	case "HTTP/1.0":
		ver = transport.VersionHTTP10
	default:
		return nil, errMalformedRequest
	}

	path, query := target, ""
	if target != "*" {
		if idx := strings.IndexByte(target, '?'); idx >= 0 {
			path, query = target[:idx], target[idx+1:]
		}
	}

	headers, err := c.parseHeaders()
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if tlsOn {
		scheme = "https"
	}
	authority, _ := headers.Get("host")

	mode, contentLength, err := decideBodyMode(headers)
	if err != nil {
		return nil, err
	}

	keepAlive := decideKeepAlive(ver, headers)
	expect, hasExpect := headers.Get("expect")
	expectContinue := hasExpect && strings.EqualFold(strings.TrimSpace(expect), "100-continue")

	req := &transport.Request{
		Method:    method,
		Scheme:    scheme,
		Authority: authority,
		Path:      path,
		Query:     query,
		Version:   ver,
		Headers:   headers,
	}

	return &parsedRequest{
		req:            req,
		mode:           mode,
		contentLength:  contentLength,
		keepAlive:      keepAlive,
		expectContinue: expectContinue,
	}, nil
}

func (c *Conn) parseHeaders() (transport.Headers, error) {
	var headers transport.Headers
	for {
		line, err := c.readLine(c.cfg.MaxHeaderLength, errHeaderLineTooLong)
		if err != nil {
			return nil, err
		}
		trimmed := trimCRLF(line)
		if len(trimmed) == 0 {
			return headers, nil
		}
		if len(headers) >= c.cfg.MaxHeaderCount {
			return nil, errTooManyHeaders
		}

		idx := bytes.IndexByte(trimmed, ':')
		if idx <= 0 {
			return nil, errMalformedHeader
		}
		name := strings.ToLower(strings.TrimSpace(string(trimmed[:idx])))
		value := strings.TrimSpace(string(trimmed[idx+1:]))
		if name == "" {
			return nil, errMalformedHeader
		}
		headers = append(headers, transport.Header{Name: name, Value: value})
	}
}

// decideBodyMode implements spec §4.1's body mode table, including the
// request-smuggling guard: Content-Length and chunked Transfer-Encoding
// together are rejected outright rather than picked between (RFC 9112
// §6.3 names this exact combination a smuggling vector).
func decideBodyMode(headers transport.Headers) (bodyMode, int64, error) {
	te, hasTE := headers.Get("transfer-encoding")
	chunked := hasTE && strings.EqualFold(strings.TrimSpace(te), "chunked")
	if hasTE && !chunked {
		return bodyNone, 0, errMalformedHeader
	}

	clValues := headers.Values("content-length")
	hasCL := len(clValues) > 0

	if chunked && hasCL {
		return bodyNone, 0, errSmuggling
	}
	if chunked {
		return bodyChunked, 0, nil
	}
	if !hasCL {
		return bodyNone, 0, nil
	}

	var n int64 = -1
	for _, v := range clValues {
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || parsed < 0 {
			return bodyNone, 0, errBadContentLength
		}
		if n == -1 {
			n = parsed
		} else if n != parsed {
			return bodyNone, 0, errBadContentLength
		}
	}
	if n == 0 {
		return bodyNone, 0, nil
	}
	return bodyFixed, n, nil
}

func decideKeepAlive(ver transport.Version, headers transport.Headers) bool {
	conn, ok := headers.Get("connection")
	conn = strings.ToLower(strings.TrimSpace(conn))
	if ok && conn == "close" {
		return false
	}
	if ok && conn == "keep-alive" {
		return true
	}
	return ver == transport.VersionHTTP11
}
