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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/httpd/transport"
)

func TestDecideBodyMode(t *testing.T) {
	tests := []struct {
		name    string
		headers transport.Headers
		mode    bodyMode
		length  int64
		wantErr bool
	}{
		{
			name:    "NoBodyHeaders",
			headers: transport.Headers{},
			mode:    bodyNone,
		},
		{
			name:    "FixedLength",
			headers: transport.Headers{{Name: "content-length", Value: "5"}},
			mode:    bodyFixed,
			length:  5,
		},
		{
			name: "DuplicateAgreeingContentLength",
			headers: transport.Headers{
				{Name: "content-length", Value: "5"},
				{Name: "content-length", Value: "5"},
			},
			mode:   bodyFixed,
			length: 5,
		},
		{
			name: "DuplicateDisagreeingContentLength",
			headers: transport.Headers{
				{Name: "content-length", Value: "5"},
				{Name: "content-length", Value: "6"},
			},
			wantErr: true,
		},
		{
			name:    "Chunked",
			headers: transport.Headers{{Name: "transfer-encoding", Value: "chunked"}},
			mode:    bodyChunked,
		},
		{
			name: "ChunkedAndContentLengthIsSmuggling",
			headers: transport.Headers{
				{Name: "transfer-encoding", Value: "chunked"},
				{Name: "content-length", Value: "5"},
			},
			wantErr: true,
		},
		{
			name:    "NegativeContentLength",
			headers: transport.Headers{{Name: "content-length", Value: "-1"}},
			wantErr: true,
		},
		{
			name:    "NonNumericContentLength",
			headers: transport.Headers{{Name: "content-length", Value: "abc"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, length, err := decideBodyMode(tt.headers)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, mode)
			assert.Equal(t, tt.length, length)
		})
	}
}

func TestDecideKeepAlive(t *testing.T) {
	tests := []struct {
		name    string
		ver     transport.Version
		headers transport.Headers
		want    bool
	}{
		{"HTTP11Default", transport.VersionHTTP11, nil, true},
		{"HTTP11Close", transport.VersionHTTP11, transport.Headers{{Name: "connection", Value: "close"}}, false},
		{"HTTP10Default", transport.VersionHTTP10, nil, false},
		{"HTTP10KeepAlive", transport.VersionHTTP10, transport.Headers{{Name: "connection", Value: "keep-alive"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideKeepAlive(tt.ver, tt.headers))
		})
	}
}
