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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	status     int
	headers    Headers
	suppressed bool
	bodyLen    int64
	fullBody   []byte
	chunks     [][]byte
	file       FileRange
	informed   []int
	upgradedTo string
}

func (f *fakeSink) WriteHeaders(status int, headers Headers, bodyLen int64, suppressBody bool) error {
	f.status, f.headers, f.suppressed = status, headers, suppressBody
	f.bodyLen = bodyLen
	return nil
}

func (f *fakeSink) WriteBodyFull(data []byte) error {
	f.fullBody = data
	return nil
}

func (f *fakeSink) WriteChunk(data []byte) error {
	f.chunks = append(f.chunks, data)
	return nil
}

func (f *fakeSink) WriteFile(file FileRange) error {
	f.file = file
	return nil
}

func (f *fakeSink) WriteInformational(status int, headers Headers) error {
	f.informed = append(f.informed, status)
	return nil
}

func (f *fakeSink) ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	return []byte("body"), false, nil
}

func (f *fakeSink) RequestUpgrade(ctx context.Context, protocol string, opts map[string]any) error {
	f.upgradedTo = protocol
	return nil
}

func newExchange(method string, version Version) (*Base, context.Context, *fakeSink) {
	sink := &fakeSink{}
	req := &Request{Method: method, Version: version}
	base, ctx := NewBase(context.Background(), req, sink)
	return base, ctx, sink
}

func TestSendResponseInjectsDateWhenAbsent(t *testing.T) {
	base, ctx, sink := newExchange("GET", VersionHTTP11)

	err := base.SendResponse(ctx, ResponseSpec{Status: 200, Kind: BodyFull, Full: []byte("OK")})
	require.NoError(t, err)

	v, ok := sink.headers.Get("date")
	assert.True(t, ok)
	assert.NotEmpty(t, v)
	assert.Equal(t, []byte("OK"), sink.fullBody)
}

func TestSendResponseDoubleSendFails(t *testing.T) {
	base, ctx, _ := newExchange("GET", VersionHTTP11)

	require.NoError(t, base.SendResponse(ctx, ResponseSpec{Status: 200, Kind: BodyFull}))
	err := base.SendResponse(ctx, ResponseSpec{Status: 200, Kind: BodyFull})
	assert.ErrorIs(t, err, ErrAlreadySent)
}

func TestSendResponseSuppressesBodyForHeadAnd204And304(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
	}{
		{"HEAD", "HEAD", 200},
		{"NoContent", "GET", 204},
		{"NotModified", "GET", 304},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, ctx, sink := newExchange(tt.method, VersionHTTP11)
			err := base.SendResponse(ctx, ResponseSpec{
				Status:  tt.status,
				Headers: Headers{{Name: "content-length", Value: "5"}},
				Kind:    BodyFull,
				Full:    []byte("hello"),
			})
			require.NoError(t, err)
			assert.True(t, sink.suppressed)
			assert.Nil(t, sink.fullBody)
			cl, ok := sink.headers.Get("content-length")
			assert.True(t, ok)
			assert.Equal(t, "5", cl)
		})
	}
}

func TestCrossTaskCallFails(t *testing.T) {
	base, _, _ := newExchange("GET", VersionHTTP11)

	err := base.SendResponse(context.Background(), ResponseSpec{Status: 200, Kind: BodyFull})
	assert.ErrorIs(t, err, ErrWrongTask)
}

func TestSendChunkRequiresChunkedStart(t *testing.T) {
	base, ctx, _ := newExchange("GET", VersionHTTP11)

	err := base.SendChunk(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrNotChunked)

	require.NoError(t, base.SendResponse(ctx, ResponseSpec{Status: 200, Kind: BodyChunked}))
	require.NoError(t, base.SendChunk(ctx, []byte("x")))
	require.NoError(t, base.SendChunk(ctx, nil))
}

func TestSendInformationalRejectedOnHTTP10(t *testing.T) {
	base, ctx, _ := newExchange("GET", VersionHTTP10)

	err := base.SendInformational(ctx, 100, nil)
	assert.ErrorIs(t, err, ErrUpgradeNotSupported)
}

func TestRequestUpgradeOnlyWebsocketOverHTTP11(t *testing.T) {
	base, ctx, sink := newExchange("GET", VersionHTTP11)

	err := base.RequestUpgrade(ctx, "websocket", nil)
	require.NoError(t, err)
	assert.Equal(t, "websocket", sink.upgradedTo)

	base2, ctx2, _ := newExchange("GET", VersionHTTP2)
	err = base2.RequestUpgrade(ctx2, "websocket", nil)
	assert.ErrorIs(t, err, ErrUpgradeNotSupported)
}
