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

package http1

import "github.com/pkg/errors"

// ProtocolError is a parse or protocol violation with a status hint the
// connection loop writes back (when a response is still writable)
// before closing the connection.
type ProtocolError struct {
	Status int
	msg    string
}

func (e *ProtocolError) Error() string {
	return e.msg
}

func newError(status int, format string, args ...any) *ProtocolError {
	return &ProtocolError{Status: status, msg: errors.Errorf(format, args...).Error()}
}

var (
	errRequestLineTooLong = newError(414, "request line exceeds max_request_line_length")
	errHeaderLineTooLong  = newError(431, "header line exceeds max_header_length")
	errTooManyHeaders     = newError(431, "header count exceeds max_header_count")
	errMalformedRequest   = newError(400, "malformed request line")
	errMalformedHeader    = newError(400, "malformed header field")
	errSmuggling          = newError(400, "conflicting Content-Length and Transfer-Encoding")
	errBadContentLength   = newError(400, "invalid Content-Length")
	errBadChunkSize       = newError(400, "invalid chunk size")
)
