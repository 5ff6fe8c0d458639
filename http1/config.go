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

// Package http1 implements the HTTP/1.1 (and HTTP/1.0) transport: an
// incremental header parser over a growable receive buffer, fixed and
// chunked body reading, response serialization, and keep-alive
// connection reuse.
package http1

import (
	"time"

	"github.com/relaycore/httpd/common"
)

// Config bounds a connection's HTTP/1 parsing, mirroring spec.md's
// External Interfaces list. Struct tags double as config and
// mapstructure keys so the same struct decodes from either confengine's
// YAML tree or a hand-built map in tests.
type Config struct {
	MaxRequestLineLength int           `config:"max_request_line_length" mapstructure:"max_request_line_length"`
	MaxHeaderLength      int           `config:"max_header_length" mapstructure:"max_header_length"`
	MaxHeaderCount       int           `config:"max_header_count" mapstructure:"max_header_count"`
	ReadTimeout          time.Duration `config:"read_timeout" mapstructure:"read_timeout"`
	WebsocketEnabled     bool          `config:"websocket_enabled" mapstructure:"websocket_enabled"`
	CompressEnabled      bool          `config:"compress_enabled" mapstructure:"compress_enabled"`

	// Extra carries tunables that haven't earned a typed field yet,
	// the same role common.Options plays for the teacher's protocol
	// decoders (e.g. phttp.NewDecoder's "enableBody"/"maxBodySize").
	// See Conn.Serve's "expect_continue_enabled" lookup.
	Extra common.Options `config:"extra" mapstructure:"extra"`
}

// DefaultConfig matches the defaults spec.md §4.1 names.
func DefaultConfig() Config {
	return Config{
		MaxRequestLineLength: 10_000,
		MaxHeaderLength:      10_000,
		MaxHeaderCount:       50,
		ReadTimeout:          60 * time.Second,
		Extra:                common.NewOptions(),
	}
}
