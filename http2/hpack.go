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

	"golang.org/x/net/http2/hpack"

	"github.com/relaycore/httpd/transport"
)

// hpackState owns one connection's encode and decode dynamic tables.
// Both tables are mutable state private to the connection task; they
// are never shared or accessed from a stream worker goroutine.
type hpackState struct {
	enc    *hpack.Encoder
	encBuf bytes.Buffer
	dec    *hpack.Decoder

	decoded    transport.Headers
	decodeErr  error
	maxListLen uint64
	listLen    uint64
}

func newHPACKState(tableSize uint32) *hpackState {
	h := &hpackState{}
	h.enc = hpack.NewEncoder(&h.encBuf)
	h.enc.SetMaxDynamicTableSize(tableSize)
	h.dec = hpack.NewDecoder(tableSize, h.onField)
	return h
}

// SetEncoderTableSize applies a peer-advertised
// SETTINGS_HEADER_TABLE_SIZE to the encoder's dynamic table.
func (h *hpackState) SetEncoderTableSize(n uint32) {
	h.enc.SetMaxDynamicTableSize(n)
}

// SetDecoderTableSize applies our own advertised
// SETTINGS_HEADER_TABLE_SIZE to the decoder's dynamic table.
func (h *hpackState) SetDecoderTableSize(n uint32) {
	h.dec.SetMaxDynamicTableSize(n)
}

// SetMaxHeaderListLen bounds the sum of decoded header field sizes
// (name+value+32 per RFC 9113 §6.5.2's accounting), enforced across
// possibly-fragmented CONTINUATION frames belonging to one HEADERS
// block.
func (h *hpackState) SetMaxHeaderListLen(n uint64) {
	h.maxListLen = n
}

func (h *hpackState) onField(f hpack.HeaderField) {
	h.listLen += uint64(len(f.Name)) + uint64(len(f.Value)) + 32
	if h.maxListLen != 0 && h.listLen > h.maxListLen {
		if h.decodeErr == nil {
			h.decodeErr = &ConnError{Code: ErrEnhanceYourCalm, Msg: "header list exceeds max_header_list_size"}
		}
		return
	}
	h.decoded = append(h.decoded, transport.Header{Name: f.Name, Value: f.Value})
}

// Encode renders headers as one HPACK block, ready to be handed to
// FrameWriter.WriteHeaders (which splits it across CONTINUATION frames
// if needed).
func (h *hpackState) Encode(headers transport.Headers) []byte {
	h.encBuf.Reset()
	for _, f := range headers {
		h.enc.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value})
	}
	out := make([]byte, h.encBuf.Len())
	copy(out, h.encBuf.Bytes())
	return out
}

// BeginBlock resets per-block decode accounting before the first
// fragment of a new HEADERS+CONTINUATION sequence is fed in.
func (h *hpackState) BeginBlock() {
	h.decoded = nil
	h.decodeErr = nil
	h.listLen = 0
}

// WriteFragment feeds one HEADERS or CONTINUATION frame's payload into
// the decoder. Call Finish once end_headers is seen.
func (h *hpackState) WriteFragment(p []byte) error {
	_, err := h.dec.Write(p)
	return err
}

// Finish closes the current block, returning the decoded header list
// or a COMPRESSION_ERROR / the recorded list-size error.
func (h *hpackState) Finish() (transport.Headers, error) {
	if err := h.dec.Close(); err != nil {
		return nil, &ConnError{Code: ErrCompressionError, Msg: err.Error()}
	}
	if h.decodeErr != nil {
		return nil, h.decodeErr
	}
	return h.decoded, nil
}
