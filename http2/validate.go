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

package http2

import (
	"strconv"
	"strings"

	"github.com/relaycore/httpd/transport"
)

var connectionSpecificHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// validatedRequest is the outcome of folding a decoded HPACK field
// list into a transport.Request, per spec.md §4.4.
type validatedRequest struct {
	method    string
	scheme    string
	authority string
	path      string
	query     string
	headers   transport.Headers
}

// validateRequestFields applies spec.md §4.4 to one stream's complete
// decoded header list. Any returned error is a StreamError; the
// caller is responsible for distinguishing it from a ConnError raised
// earlier during HPACK decode itself.
func validateRequestFields(streamID uint32, fields transport.Headers) (*validatedRequest, error) {
	req := &validatedRequest{}
	seenRegular := false
	var cookies []string
	var contentLength string
	haveContentLength := false

	for _, f := range fields {
		name := f.Name
		if strings.HasPrefix(name, ":") {
			if seenRegular {
				return nil, streamErr(streamID, ErrProtocolError, "pseudo-header after regular header")
			}
			switch name {
			case ":method":
				if req.method != "" {
					return nil, streamErr(streamID, ErrProtocolError, "duplicate :method")
				}
				req.method = f.Value
			case ":scheme":
				if req.scheme != "" {
					return nil, streamErr(streamID, ErrProtocolError, "duplicate :scheme")
				}
				req.scheme = f.Value
			case ":authority":
				req.authority = f.Value
			case ":path":
				if req.path != "" {
					return nil, streamErr(streamID, ErrProtocolError, "duplicate :path")
				}
				req.path = f.Value
			default:
				return nil, streamErr(streamID, ErrProtocolError, "unknown pseudo-header "+name)
			}
			continue
		}

		seenRegular = true
		if !isLowerASCII(name) {
			return nil, streamErr(streamID, ErrProtocolError, "header name not lowercase ASCII: "+name)
		}
		if connectionSpecificHeaders[name] {
			return nil, streamErr(streamID, ErrProtocolError, "connection-specific header: "+name)
		}
		switch name {
		case "te":
			if f.Value != "trailers" {
				return nil, streamErr(streamID, ErrProtocolError, "te must be trailers")
			}
		case "content-length":
			if haveContentLength && f.Value != contentLength {
				return nil, streamErr(streamID, ErrProtocolError, "inconsistent content-length")
			}
			if n, err := strconv.ParseInt(f.Value, 10, 64); err != nil || n < 0 {
				return nil, streamErr(streamID, ErrProtocolError, "invalid content-length")
			}
			haveContentLength = true
			contentLength = f.Value
		case "cookie":
			cookies = append(cookies, f.Value)
			continue
		}
		req.headers = append(req.headers, f)
	}

	if req.method == "" || req.scheme == "" || req.path == "" {
		return nil, streamErr(streamID, ErrProtocolError, "missing required pseudo-header")
	}
	if req.path != "*" {
		if !strings.HasPrefix(req.path, "/") {
			return nil, streamErr(streamID, ErrProtocolError, ":path not absolute")
		}
		if path, query, ok := strings.Cut(req.path, "?"); ok {
			req.path, req.query = path, query
		}
		if containsDotDotSegment(req.path) {
			return nil, streamErr(streamID, ErrProtocolError, ":path contains dot segment")
		}
	}

	if len(cookies) > 0 {
		req.headers = append(req.headers, transport.Header{Name: "cookie", Value: strings.Join(cookies, "; ")})
	}

	return req, nil
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			return false
		}
	}
	return true
}

func containsDotDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

func streamErr(streamID uint32, code ErrCode, msg string) error {
	return &StreamError{StreamID: streamID, Code: code, Msg: msg}
}
