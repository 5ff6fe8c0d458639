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
	"bufio"
	"net"
)

// PrefaceLookahead peeks at the first len(ClientPreface) bytes from br
// without consuming them, so a plaintext listener can decide between
// an h2c prior-knowledge connection and a plain HTTP/1 one before
// committing to either transport.
func PrefaceLookahead(br *bufio.Reader) (bool, error) {
	peek, err := br.Peek(len(ClientPreface))
	if err != nil {
		return false, err
	}
	return string(peek) == ClientPreface, nil
}

// h2cConn wraps a net.Conn whose first bytes (the client preface) have
// already been matched by PrefaceLookahead against a bufio.Reader, so
// Serve's own preface read below sees the same bytes again.
type h2cConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *h2cConn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}

// NewPriorKnowledgeConn adapts a plain-TCP connection, after h2c prior
// knowledge was confirmed via PrefaceLookahead, back into a net.Conn
// so NewConn/Serve can read the (still unconsumed) preface normally.
func NewPriorKnowledgeConn(nc net.Conn, br *bufio.Reader) net.Conn {
	return &h2cConn{Conn: nc, br: br}
}
