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
	"sync"

	"github.com/relaycore/httpd/internal/mailbox"
	"github.com/relaycore/httpd/transport"
)

// StreamState is a node in the RFC 9113 §5.1 per-stream state machine.
// Push is out of scope (spec Non-goals), so reserved states never
// occur; newStream creates every stream directly in streamOpen when its
// HEADERS arrive, so streamIdle is never assigned.
type StreamState int

const (
	streamIdle StreamState = iota
	streamOpen
	streamHalfClosedLocal
	streamHalfClosedRemote
	streamClosed
)

func (s StreamState) String() string {
	switch s {
	case streamIdle:
		return "idle"
	case streamOpen:
		return "open"
	case streamHalfClosedLocal:
		return "half-closed (local)"
	case streamHalfClosedRemote:
		return "half-closed (remote)"
	case streamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is one HTTP/2 request/response exchange, owned by the
// connection task but driven by its own worker goroutine. All mutable
// fields are behind mu because the connection task (frame dispatch)
// and the worker (application handler) both touch it: the connection
// delivers frames and window updates, the worker sends response
// frames and advances local half of the state machine.
type Stream struct {
	id  uint32
	box mailbox.Box

	mu        sync.Mutex
	state     StreamState
	sendWin   *flowWindow
	recvWin   *flowWindow
	rstSent   bool
	rstReason ErrCode

	req *transport.Request
}

func newStream(id uint32, box mailbox.Box, initialSendWindow, initialRecvWindow uint32, req *transport.Request) *Stream {
	return &Stream{
		id:      id,
		box:     box,
		state:   streamOpen,
		sendWin: newFlowWindow(initialSendWindow),
		recvWin: newFlowWindow(initialRecvWindow),
		req:     req,
	}
}

func (s *Stream) ID() uint32 { return s.id }

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseLocal marks our half of the stream closed (we sent END_STREAM
// or RST_STREAM) and reports whether both halves are now closed, so the
// caller can prune the stream from the connection's admission-counted
// map.
func (s *Stream) CloseLocal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case streamOpen:
		s.state = streamHalfClosedLocal
	case streamHalfClosedRemote:
		s.state = streamClosed
	}
	return s.state == streamClosed
}

// CloseRemote marks the peer's half of the stream closed (END_STREAM
// or RST_STREAM received) and reports whether both halves are now
// closed.
func (s *Stream) CloseRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case streamOpen:
		s.state = streamHalfClosedRemote
	case streamHalfClosedLocal:
		s.state = streamClosed
	}
	return s.state == streamClosed
}

// Closed reports whether both halves are closed.
func (s *Stream) Closed() bool {
	return s.State() == streamClosed
}

// CanReceiveFrames reports whether a DATA/HEADERS frame from the peer
// is still legal to deliver on this stream (RFC 9113 §5.1: a frame
// received after the remote half closes is a STREAM_CLOSED error,
// except trailing WINDOW_UPDATE/RST_STREAM/PRIORITY).
func (s *Stream) CanReceiveFrames() bool {
	switch s.State() {
	case streamOpen, streamHalfClosedLocal:
		return true
	default:
		return false
	}
}
