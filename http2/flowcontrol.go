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

import "sync"

// maxWindowSize is 2^31-1, the largest value a flow-control window may
// hold (RFC 9113 §6.9).
const maxWindowSize = 1<<31 - 1

// flowWindow is a signed flow-control window shared by a connection or
// one stream. RFC 9113 §6.9.1 allows SETTINGS_INITIAL_WINDOW_SIZE
// changes to drive a stream's send window negative; the window is held
// and updated as an int64, so a negative value or one past
// maxWindowSize is represented without wrapping.
type flowWindow struct {
	mu  sync.Mutex
	cur int64
}

func newFlowWindow(initial uint32) *flowWindow {
	return &flowWindow{cur: int64(initial)}
}

// Size returns the current window, which may be negative.
func (w *flowWindow) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Consume deducts n (the size of a DATA frame just sent) from the
// window. Callers must only consume up to Size().
func (w *flowWindow) Consume(n int64) {
	w.mu.Lock()
	w.cur -= n
	w.mu.Unlock()
}

// Increment applies a WINDOW_UPDATE increment, returning a
// FLOW_CONTROL_ERROR if the result would exceed maxWindowSize.
func (w *flowWindow) Increment(n uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.cur + int64(n)
	if next > maxWindowSize {
		return &ConnError{Code: ErrFlowControlError, Msg: "window update overflow"}
	}
	w.cur = next
	return nil
}

// ApplyInitialWindowDelta shifts the window by delta, the change in
// SETTINGS_INITIAL_WINDOW_SIZE applied to every stream already open
// when the new value takes effect (RFC 9113 §6.9.2). The window may
// legally go negative as a result.
func (w *flowWindow) ApplyInitialWindowDelta(delta int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.cur + delta
	if next > maxWindowSize {
		return &ConnError{Code: ErrFlowControlError, Msg: "initial window delta overflow"}
	}
	w.cur = next
	return nil
}

// pendingSend is one FIFO entry in the connection's pending-sends
// queue: a stream's unsent response bytes, blocked on flow-control
// window room, plus the caller's completion signal.
type pendingSend struct {
	streamID  uint32
	data      []byte
	endStream bool
	done      chan error
}

// sendQueue is the connection's FIFO of streams with buffered output
// waiting on window room, walked by the pending-sends pump each time
// the connection window or a stream's window grows. A stream has at
// most one write in flight at a time (streamSink.submit blocks the
// worker until done fires), so one entry per stream ID is enough.
type sendQueue struct {
	mu      sync.Mutex
	order   []uint32
	entries map[uint32]*pendingSend
}

func newSendQueue() *sendQueue {
	return &sendQueue{entries: make(map[uint32]*pendingSend)}
}

// Enqueue stores p as the blocked remainder for its stream, replacing
// any earlier entry for that stream and appending to the FIFO order
// only the first time the stream blocks.
func (q *sendQueue) Enqueue(p *pendingSend) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[p.streamID]; !exists {
		q.order = append(q.order, p.streamID)
	}
	q.entries[p.streamID] = p
}

// Drain removes and returns every queued entry in FIFO order, for the
// pump to retry sending after a window grows.
func (q *sendQueue) Drain() []*pendingSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*pendingSend, 0, len(q.order))
	for _, id := range q.order {
		if p, ok := q.entries[id]; ok {
			out = append(out, p)
		}
	}
	q.order = nil
	q.entries = make(map[uint32]*pendingSend)
	return out
}
