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
)

func TestFlowWindowConsumeAndIncrement(t *testing.T) {
	w := newFlowWindow(100)
	w.Consume(40)
	require.Equal(t, int64(60), w.Size())

	require.NoError(t, w.Increment(1000))
	require.Equal(t, int64(1060), w.Size())
}

func TestFlowWindowIncrementOverflow(t *testing.T) {
	w := newFlowWindow(maxWindowSize - 1)
	err := w.Increment(10)
	require.Error(t, err)
	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, ErrFlowControlError, connErr.Code)
}

func TestFlowWindowCanGoNegativeViaInitialWindowDelta(t *testing.T) {
	w := newFlowWindow(100)
	w.Consume(100)
	require.Equal(t, int64(0), w.Size())

	require.NoError(t, w.ApplyInitialWindowDelta(-50))
	require.Equal(t, int64(-50), w.Size())
}

func TestSendQueueDrainIsFIFOAndReplacesEntries(t *testing.T) {
	q := newSendQueue()
	q.Enqueue(&pendingSend{streamID: 3, data: []byte("first")})
	q.Enqueue(&pendingSend{streamID: 5, data: []byte("other")})
	q.Enqueue(&pendingSend{streamID: 3, data: []byte("second")}) // replaces, FIFO position unchanged

	got := q.Drain()
	require.Len(t, got, 2)
	require.Equal(t, uint32(3), got[0].streamID)
	require.Equal(t, "second", string(got[0].data))
	require.Equal(t, uint32(5), got[1].streamID)
	require.Empty(t, q.Drain())
}
