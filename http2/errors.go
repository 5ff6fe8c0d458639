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

import "fmt"

// ErrCode is an RFC 9113 §7 error code.
type ErrCode uint32

const (
	ErrNoError            ErrCode = 0x0
	ErrProtocolError      ErrCode = 0x1
	ErrInternalError      ErrCode = 0x2
	ErrFlowControlError   ErrCode = 0x3
	ErrSettingsTimeout    ErrCode = 0x4
	ErrStreamClosed       ErrCode = 0x5
	ErrFrameSizeError     ErrCode = 0x6
	ErrRefusedStream      ErrCode = 0x7
	ErrCancel             ErrCode = 0x8
	ErrCompressionError   ErrCode = 0x9
	ErrConnectError       ErrCode = 0xa
	ErrEnhanceYourCalm    ErrCode = 0xb
	ErrInadequateSecurity ErrCode = 0xc
	ErrHTTP11Required     ErrCode = 0xd
)

// ConnError is a connection-fatal error: the connection task answers
// with GOAWAY carrying Code and closes the socket.
type ConnError struct {
	Code ErrCode
	Msg  string
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("http2: connection error %s: %s", e.Code, e.Msg)
}

// StreamError terminates one stream with RST_STREAM carrying Code; the
// connection and its other streams are unaffected.
type StreamError struct {
	StreamID uint32
	Code     ErrCode
	Msg      string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("http2: stream %d error %s: %s", e.StreamID, e.Code, e.Msg)
}

func (c ErrCode) String() string {
	switch c {
	case ErrNoError:
		return "NO_ERROR"
	case ErrProtocolError:
		return "PROTOCOL_ERROR"
	case ErrInternalError:
		return "INTERNAL_ERROR"
	case ErrFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case ErrSettingsTimeout:
		return "SETTINGS_TIMEOUT"
	case ErrStreamClosed:
		return "STREAM_CLOSED"
	case ErrFrameSizeError:
		return "FRAME_SIZE_ERROR"
	case ErrRefusedStream:
		return "REFUSED_STREAM"
	case ErrCancel:
		return "CANCEL"
	case ErrCompressionError:
		return "COMPRESSION_ERROR"
	case ErrConnectError:
		return "CONNECT_ERROR"
	case ErrEnhanceYourCalm:
		return "ENHANCE_YOUR_CALM"
	case ErrInadequateSecurity:
		return "INADEQUATE_SECURITY"
	case ErrHTTP11Required:
		return "HTTP_1_1_REQUIRED"
	default:
		return fmt.Sprintf("ERR_CODE(%d)", uint32(c))
	}
}
