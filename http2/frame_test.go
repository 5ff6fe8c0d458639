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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	h := FrameHeader{Length: 42, Type: FrameHeaders, Flags: FlagEndHeaders, StreamID: 7}
	buf := make([]byte, FrameHeaderLen)
	WriteFrameHeader(buf, h)

	got := readFrameHeader(buf)
	require.Equal(t, h, got)
}

func TestFrameReaderRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	WriteFrameHeader(make([]byte, FrameHeaderLen), FrameHeader{})
	hdr := make([]byte, FrameHeaderLen)
	WriteFrameHeader(hdr, FrameHeader{Length: DefaultMaxFrameSize + 1, Type: FrameData})
	buf.Write(hdr)

	fr := NewFrameReader(&buf, DefaultMaxFrameSize)
	_, err := fr.ReadFrame()
	require.Error(t, err)
	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, ErrFrameSizeError, connErr.Code)
}

func TestFrameWriterSplitsHeadersAcrossContinuation(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 10)
	block := bytes.Repeat([]byte{0xAB}, 25)
	require.NoError(t, fw.WriteHeaders(3, block, true))

	fr := NewFrameReader(&buf, 1<<20)

	f1, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, FrameHeaders, f1.Type)
	require.True(t, f1.Has(FlagEndStream))
	require.False(t, f1.Has(FlagEndHeaders))
	require.Len(t, f1.Payload, 10)

	f2, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, FrameContinuation, f2.Type)
	require.False(t, f2.Has(FlagEndHeaders))
	require.Len(t, f2.Payload, 10)

	f3, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, FrameContinuation, f3.Type)
	require.True(t, f3.Has(FlagEndHeaders))
	require.Len(t, f3.Payload, 5)
}

func TestFrameWriterSplitsData(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 4)
	require.NoError(t, fw.WriteData(9, []byte("abcdefghij"), true))

	fr := NewFrameReader(&buf, 1<<20)
	var total []byte
	for {
		f, err := fr.ReadFrame()
		require.NoError(t, err)
		require.Equal(t, FrameData, f.Type)
		total = append(total, f.Payload...)
		if f.Has(FlagEndStream) {
			break
		}
	}
	require.Equal(t, "abcdefghij", string(total))
}
