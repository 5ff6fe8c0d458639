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

// Package server ties the HTTP/1.1 and HTTP/2 transports to a listening
// socket: it accepts connections, picks a transport via ALPN or h2c
// prior-knowledge sniffing, and runs each connection's Serve loop against
// the application's transport.Handler.
package server

import (
	"time"

	"github.com/relaycore/httpd/adminserver"
	"github.com/relaycore/httpd/http1"
	"github.com/relaycore/httpd/http2"
)

// TLSConfig names the certificate/key pair used to terminate TLS. With
// Enabled false the listener runs in plaintext, where HTTP/2 is only
// reachable via h2c prior knowledge rather than ALPN.
type TLSConfig struct {
	Enabled  bool   `config:"enabled" mapstructure:"enabled"`
	CertFile string `config:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `config:"key_file" mapstructure:"key_file"`
}

// Config is the top-level server configuration, unpacked from the
// "server" section of the YAML config file via confengine.
type Config struct {
	Address       string             `config:"address" mapstructure:"address"`
	NumAcceptors  int                `config:"num_acceptors" mapstructure:"num_acceptors"`
	ShutdownGrace time.Duration      `config:"shutdown_grace" mapstructure:"shutdown_grace"`
	HTTP1         http1.Config       `config:"http1" mapstructure:"http1"`
	HTTP2         http2.Config       `config:"http2" mapstructure:"http2"`
	TLS           TLSConfig          `config:"tls" mapstructure:"tls"`
	Admin         adminserver.Config `config:"admin" mapstructure:"admin"`
}

// DefaultConfig matches spec.md's §4 default listener settings.
func DefaultConfig() Config {
	return Config{
		Address:       ":8080",
		NumAcceptors:  1,
		ShutdownGrace: 15 * time.Second,
		HTTP1:         http1.DefaultConfig(),
		HTTP2:         http2.DefaultConfig(),
		Admin:         adminserver.DefaultConfig(),
	}
}
