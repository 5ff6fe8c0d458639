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

// Package linescan splits a byte slice into CRLF/LF-terminated lines
// without copying, for the HTTP/1 request-line and header parser that
// runs over a growable connection read buffer.
package linescan

import (
	"bytes"
)

var (
	CharCRLF = []byte("\r\n")
	CharCR   = []byte("\r")
	CharLF   = []byte("\n")
)

// Scanner walks a byte slice one line at a time.
type Scanner struct {
	l, r int
	buf  []byte
}

// NewScanner returns a *Scanner over b.
//
// The trailing line terminator (\r\n or \n) is kept in each returned
// line rather than stripped; callers that need the bare header bytes
// trim it themselves. This avoids the copy bytes.Buffer-backed
// bufio.Scanner would otherwise do on every line.
func NewScanner(b []byte) *Scanner {
	return &Scanner{
		buf: b,
	}
}

// Scan advances to the next line terminated by \n (or EOF) and reports
// whether a line remains.
func (s *Scanner) Scan() bool {
	s.l = s.r
	if len(s.buf) == s.l {
		return false
	}

	idx := bytes.IndexByte(s.buf[s.l:], CharLF[0])
	if idx == -1 {
		s.r = len(s.buf)
	} else {
		s.r = s.l + idx + 1
	}
	return true
}

// Bytes returns the line found by the last Scan call. The slice aliases
// the scanner's backing array; copy it before the buffer is reused or
// mutated.
func (s *Scanner) Bytes() []byte {
	return s.buf[s.l:s.r]
}
