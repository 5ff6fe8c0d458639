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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/httpd/transport"
)

func TestHPACKEncodeDecodeRoundTrip(t *testing.T) {
	enc := newHPACKState(4096)
	dec := newHPACKState(4096)

	headers := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
		{Name: "accept", Value: "*/*"},
	}
	block := enc.Encode(headers)

	dec.BeginBlock()
	require.NoError(t, dec.WriteFragment(block))
	got, err := dec.Finish()
	require.NoError(t, err)
	require.Equal(t, headers, got)
}

func TestHPACKMaxHeaderListLenRejectsOversizeBlock(t *testing.T) {
	enc := newHPACKState(4096)
	dec := newHPACKState(4096)
	dec.SetMaxHeaderListLen(10)

	block := enc.Encode(transport.Headers{{Name: "x-long", Value: "this value is definitely over ten bytes"}})

	dec.BeginBlock()
	require.NoError(t, dec.WriteFragment(block))
	_, err := dec.Finish()
	require.Error(t, err)
}

func TestHPACKFragmentedBlockAcrossContinuation(t *testing.T) {
	enc := newHPACKState(4096)
	dec := newHPACKState(4096)

	headers := transport.Headers{{Name: "x-a", Value: "1"}, {Name: "x-b", Value: "2"}}
	block := enc.Encode(headers)
	require.True(t, len(block) > 4, "need a block splittable into fragments")

	dec.BeginBlock()
	mid := len(block) / 2
	require.NoError(t, dec.WriteFragment(block[:mid]))
	require.NoError(t, dec.WriteFragment(block[mid:]))
	got, err := dec.Finish()
	require.NoError(t, err)
	require.Equal(t, headers, got)
}
