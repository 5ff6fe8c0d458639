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

package transport

import "github.com/pkg/errors"

// ApplicationError is a known error a callback raises with a status hint
// attached. Neither transport reads Status: a callback panic is turned
// into the same generic error whatever value it carries.
type ApplicationError struct {
	Status int
	Err    error
}

func (e *ApplicationError) Error() string {
	return e.Err.Error()
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// NewApplicationError wraps err with a status hint.
func NewApplicationError(status int, err error) *ApplicationError {
	return &ApplicationError{Status: status, Err: err}
}

// ErrAlreadySent is returned by SendResponse/SendInformational/
// RequestUpgrade once a response has already been committed.
var ErrAlreadySent = errors.New("transport: response already sent")

// ErrWrongTask is returned when an adapter call arrives from a goroutine
// other than the one that owns the exchange.
var ErrWrongTask = errors.New("transport: call made outside the owning task")

// ErrNotChunked is returned by SendChunk when no chunked response was
// started by SendResponse.
var ErrNotChunked = errors.New("transport: SendChunk called without a chunked response")

// ErrUpgradeNotSupported is returned by RequestUpgrade for a protocol or
// HTTP version combination the adapter does not recognize, and by
// SendInformational for a non-1xx status or an HTTP/1.0 request.
var ErrUpgradeNotSupported = errors.New("transport: upgrade not supported on this connection")
