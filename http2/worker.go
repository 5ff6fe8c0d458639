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
	"context"
	"os"
	"time"

	"github.com/relaycore/httpd/internal/rescue"
	"github.com/relaycore/httpd/internal/zerocopy"
	"github.com/relaycore/httpd/logger"
	"github.com/relaycore/httpd/metrics"
	"github.com/relaycore/httpd/transport"
)

// runWorker drives one stream's application handler on its own
// goroutine, wired to the connection task through conn.writeCh (out)
// and the stream's mailbox (in). It never touches the socket or the
// HPACK state directly.
func (c *Conn) runWorker(ctx context.Context, st *Stream, handler transport.Handler) {
	defer c.registry.Close(st.id)
	defer metrics.StreamsActive.Dec()

	sink := &streamSink{conn: c, stream: st}
	base, sctx := transport.NewBase(ctx, st.req, sink)
	if err := rescue.Call(func() { handler(sctx, base) }); err != nil {
		logger.Errorf("http2 stream %d: %v", st.id, err)
		c.submitReset(st.id, ErrInternalError)
	}
}

// streamSink implements transport.Sink for one HTTP/2 stream,
// translating Base's calls into writeRequests processed by the
// connection's single writer goroutine.
type streamSink struct {
	conn    *Conn
	stream  *Stream
	pending zerocopy.Buffer // leftover bytes from a DATA frame larger than one ReadBody call
}

func (s *streamSink) submit(wr writeRequest) error {
	wr.streamID = s.stream.id
	wr.done = make(chan error, 1)
	s.conn.writeCh <- wr
	return <-wr.done
}

func (c *Conn) submitReset(streamID uint32, code ErrCode) {
	done := make(chan error, 1)
	c.writeCh <- writeRequest{kind: writeReset, streamID: streamID, rst: code, done: done}
	<-done
}

func (s *streamSink) WriteHeaders(status int, headers transport.Headers, bodyLen int64, suppressBody bool) error {
	metrics.RequestsTotal.WithLabelValues("http2", metrics.StatusClass(status)).Inc()
	return s.submit(writeRequest{
		kind:      writeHeaders,
		status:    status,
		headers:   headers,
		endStream: bodyLen == 0 || suppressBody,
	})
}

func (s *streamSink) WriteBodyFull(data []byte) error {
	if len(data) == 0 {
		// WriteHeaders already set end_stream when bodyLen was 0.
		return nil
	}
	return s.submit(writeRequest{kind: writeData, data: data, endStream: true})
}

func (s *streamSink) WriteChunk(data []byte) error {
	return s.submit(writeRequest{kind: writeData, data: data, endStream: len(data) == 0})
}

// WriteFile reads the requested byte range into memory before handing
// it to the connection writer: unlike HTTP/1's sendfile(2) fast path,
// HTTP/2 DATA frames always need their payload in userspace to be
// chunked, HPACK-adjacent, and flow-control-accounted.
func (s *streamSink) WriteFile(f transport.FileRange) error {
	if f.Length == 0 {
		return nil
	}
	data, err := readFileRange(f)
	if err != nil {
		return err
	}
	return s.submit(writeRequest{kind: writeData, data: data, endStream: true})
}

func readFileRange(f transport.FileRange) ([]byte, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, f.Length)
	if _, err := file.ReadAt(buf, f.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *streamSink) WriteInformational(status int, headers transport.Headers) error {
	return s.submit(writeRequest{kind: writeInformational, status: status, headers: headers})
}

// ReadBody pulls the next DATA payload delivered by the connection
// task into the stream's mailbox, never returning more than
// min(maxBytes, readLength) bytes in one call. A DATA frame larger
// than that cap is held in s.pending, zero-copy, and drained across
// subsequent calls before the mailbox is polled again. A nil result
// with more=false signals end of stream.
func (s *streamSink) ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	n := readLength
	if maxBytes < n {
		n = maxBytes
	}

	if s.pending != nil {
		data, err := s.pending.Read(n)
		if err == nil {
			return data, true, nil
		}
		s.pending = nil
	}

	box, ok := s.conn.registry.Get(s.stream.id)
	if !ok {
		return nil, false, nil
	}
	for {
		msg, ok := box.PopTimeout(timeout)
		if !ok {
			return nil, false, context.DeadlineExceeded
		}
		switch msg.Kind {
		case msgData:
			data, _ := msg.Data.([]byte)
			if len(data) == 0 {
				return nil, false, nil
			}
			s.pending = zerocopy.NewBuffer(data)
			chunk, _ := s.pending.Read(n)
			return chunk, true, nil
		case msgRST:
			continue
		}
	}
}

func (s *streamSink) RequestUpgrade(ctx context.Context, protocol string, opts map[string]any) error {
	return transport.ErrUpgradeNotSupported
}
