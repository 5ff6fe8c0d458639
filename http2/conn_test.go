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
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"

	"github.com/relaycore/httpd/transport"
)

type h2TestClient struct {
	t  *testing.T
	nc net.Conn
	fr *FrameReader
}

func newH2TestClient(t *testing.T, nc net.Conn) *h2TestClient {
	t.Helper()
	_, err := nc.Write([]byte(ClientPreface))
	require.NoError(t, err)
	return &h2TestClient{t: t, nc: nc, fr: NewFrameReader(nc, 1<<20)}
}

func (c *h2TestClient) writeFrame(typ FrameType, flags uint8, streamID uint32, payload []byte) {
	hdr := make([]byte, FrameHeaderLen)
	WriteFrameHeader(hdr, FrameHeader{Length: uint32(len(payload)), Type: typ, Flags: flags, StreamID: streamID})
	_, err := c.nc.Write(append(hdr, payload...))
	require.NoError(c.t, err)
}

func (c *h2TestClient) readFrame() Frame {
	c.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := c.fr.ReadFrame()
	require.NoError(c.t, err)
	return f
}

func encodeHeaders(fields transport.Headers) []byte {
	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	for _, f := range fields {
		_ = enc.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value})
	}
	return buf.Bytes()
}

func startServer(t *testing.T, handler transport.Handler) (client net.Conn, done chan struct{}) {
	t.Helper()
	return startServerWithConfig(t, DefaultConfig(), handler)
}

func startServerWithConfig(t *testing.T, cfg Config, handler transport.Handler) (client net.Conn, done chan struct{}) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	conn := NewConn(server, cfg)
	done = make(chan struct{})
	go func() {
		conn.Serve(context.Background(), handler)
		close(done)
	}()
	return client, done
}

// TestGetRequestReceivesDataResponse covers spec scenario 4: an
// HTTP/2 GET answered with a HEADERS frame carrying :status 200
// followed by a DATA frame.
func TestGetRequestReceivesDataResponse(t *testing.T) {
	nc, _ := startServer(t, func(ctx context.Context, ex transport.Exchange) {
		require.Equal(t, "GET", ex.Request().Method)
		require.Equal(t, "/hello", ex.Request().Path)
		err := ex.SendResponse(ctx, transport.ResponseSpec{
			Status: 200,
			Kind:   transport.BodyFull,
			Full:   []byte("hi"),
		})
		require.NoError(t, err)
	})

	c := newH2TestClient(t, nc)

	// First frame back from the server is its own initial SETTINGS. It
	// is read before the client writes anything: over net.Pipe the
	// server reads nothing more until that write has been consumed.
	f := c.readFrame()
	require.Equal(t, FrameSettings, f.Type)
	require.False(t, f.Has(FlagAck))

	c.writeFrame(FrameSettings, 0, 0, nil)

	fields := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: ":path", Value: "/hello"},
	}
	c.writeFrame(FrameHeaders, FlagEndHeaders|FlagEndStream, 1, encodeHeaders(fields))

	// Then a SETTINGS ACK for the client's empty SETTINGS frame.
	f = c.readFrame()
	require.Equal(t, FrameSettings, f.Type)
	require.True(t, f.Has(FlagAck))

	f = c.readFrame()
	require.Equal(t, FrameHeaders, f.Type)
	require.Equal(t, uint32(1), f.StreamID)

	f = c.readFrame()
	require.Equal(t, FrameData, f.Type)
	require.Equal(t, "hi", string(f.Payload))
	require.True(t, f.Has(FlagEndStream))
}

// TestUppercaseHeaderNameResetsStream covers spec scenario 5: a
// request with an uppercase header name is rejected with RST_STREAM
// PROTOCOL_ERROR, and the connection survives.
func TestUppercaseHeaderNameResetsStream(t *testing.T) {
	nc, _ := startServer(t, func(ctx context.Context, ex transport.Exchange) {
		t.Fatal("handler should not run for an invalid request")
	})

	c := newH2TestClient(t, nc)
	c.readFrame() // server SETTINGS
	c.writeFrame(FrameSettings, 0, 0, nil)

	fields := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/x"},
		{Name: "Accept", Value: "*/*"},
	}
	c.writeFrame(FrameHeaders, FlagEndHeaders|FlagEndStream, 1, encodeHeaders(fields))

	c.readFrame() // SETTINGS ACK

	f := c.readFrame()
	require.Equal(t, FrameRSTStream, f.Type)
	require.Equal(t, uint32(1), f.StreamID)
	require.Equal(t, ErrProtocolError, ErrCode(beUint32(f.Payload)))
}

// TestMalformedHPACKClosesConnection covers spec scenario 6: an
// undecodable HPACK block is connection-fatal (GOAWAY
// COMPRESSION_ERROR).
func TestMalformedHPACKClosesConnection(t *testing.T) {
	nc, done := startServer(t, func(ctx context.Context, ex transport.Exchange) {
		t.Fatal("handler should not run")
	})

	c := newH2TestClient(t, nc)
	c.readFrame() // server SETTINGS
	c.writeFrame(FrameSettings, 0, 0, nil)

	// 0xFF is not a valid HPACK opcode boundary for a fresh block and
	// decodes as a truncated huffman/integer, driving the decoder into
	// an error on Close.
	garbage := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	c.writeFrame(FrameHeaders, FlagEndHeaders|FlagEndStream, 1, garbage)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-done:
			return
		default:
		}
		c.nc.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, err := c.fr.ReadFrame(); err != nil {
			break
		}
	}
	<-done
}

// TestPostRequestReadsBodyInCappedChunks covers the ReadBody cap: a
// single DATA frame larger than the caller's requested readLength is
// drained across multiple calls instead of being handed back whole.
func TestPostRequestReadsBodyInCappedChunks(t *testing.T) {
	nc, _ := startServer(t, func(ctx context.Context, ex transport.Exchange) {
		var got []byte
		for {
			chunk, more, err := ex.ReadBody(ctx, 1<<20, 4, time.Second)
			require.NoError(t, err)
			got = append(got, chunk...)
			if !more {
				break
			}
		}
		require.Equal(t, "abcdefgh", string(got))
		err := ex.SendResponse(ctx, transport.ResponseSpec{Status: 200, Kind: transport.BodyNone})
		require.NoError(t, err)
	})

	c := newH2TestClient(t, nc)
	c.readFrame() // server SETTINGS
	c.writeFrame(FrameSettings, 0, 0, nil)

	fields := transport.Headers{
		{Name: ":method", Value: "POST"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/echo"},
	}
	c.writeFrame(FrameHeaders, FlagEndHeaders, 1, encodeHeaders(fields))
	c.writeFrame(FrameData, FlagEndStream, 1, []byte("abcdefgh"))

	c.readFrame() // SETTINGS ACK

	f := c.readFrame()
	require.Equal(t, FrameHeaders, f.Type)
	require.Equal(t, uint32(1), f.StreamID)
}

// TestCompletedStreamsArePrunedFromAdmissionCount covers spec §4.3's
// stream admission rule: MaxConcurrentStreams bounds currently-active
// streams, not the cumulative count ever opened on the connection.
// With the limit set to 1, three sequential requests that each
// complete normally (both sides send END_STREAM, no RST_STREAM) must
// all succeed; a connection that forgot to prune closed streams from
// c.streams would refuse the second and third with REFUSED_STREAM.
func TestCompletedStreamsArePrunedFromAdmissionCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Local.MaxConcurrentStreams = 1

	nc, _ := startServerWithConfig(t, cfg, func(ctx context.Context, ex transport.Exchange) {
		err := ex.SendResponse(ctx, transport.ResponseSpec{
			Status: 200,
			Kind:   transport.BodyFull,
			Full:   []byte("ok"),
		})
		require.NoError(t, err)
	})

	c := newH2TestClient(t, nc)
	c.readFrame() // server SETTINGS
	c.writeFrame(FrameSettings, 0, 0, nil)
	c.readFrame() // SETTINGS ACK

	fields := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: ":path", Value: "/hello"},
	}

	for i := 0; i < 3; i++ {
		streamID := uint32(2*i + 1)
		c.writeFrame(FrameHeaders, FlagEndHeaders|FlagEndStream, streamID, encodeHeaders(fields))

		f := c.readFrame()
		require.Equal(t, FrameHeaders, f.Type, "request %d", i)
		require.Equal(t, streamID, f.StreamID, "request %d", i)

		f = c.readFrame()
		require.Equal(t, FrameData, f.Type, "request %d", i)
		require.Equal(t, "ok", string(f.Payload), "request %d", i)
		require.True(t, f.Has(FlagEndStream), "request %d", i)
	}
}
