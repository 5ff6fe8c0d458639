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
	"crypto/tls"
	"net"
)

// Version names the wire protocol a request arrived on.
type Version string

const (
	VersionHTTP10 Version = "HTTP/1.0"
	VersionHTTP11 Version = "HTTP/1.1"
	VersionHTTP2  Version = "HTTP/2"
)

// Request is the uniform view of an incoming request both transports
// build and hand to the application callback.
type Request struct {
	Method    string
	Scheme    string // "http" | "https"
	Authority string
	Path      string // absolute path, or "*"
	Query     string // opaque tail after '?', without the '?'
	Version   Version
	Headers   Headers

	PeerAddr  net.Addr
	LocalAddr net.Addr
	TLSState  *tls.ConnectionState // nil on plaintext connections

	// ConnID correlates every log line and metric sample for one
	// connection; stamped once at accept time.
	ConnID string
}
