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

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"
)

// bodyReader implements the fixed/chunked body models of spec §4.1 over
// a Conn's buffered socket reads.
type bodyReader struct {
	c    *Conn
	mode bodyMode

	fixedRemaining int64

	chunkRemaining int64
	chunkDone      bool
	needCRLF       bool
}

func newBodyReader(c *Conn, mode bodyMode, contentLength int64) *bodyReader {
	return &bodyReader{c: c, mode: mode, fixedRemaining: contentLength}
}

// ReadBody implements transport.Sink's body-read half: at most
// maxBytes, in chunks of at most readLength, waiting up to timeout.
func (b *bodyReader) ReadBody(ctx context.Context, maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	switch b.mode {
	case bodyNone:
		return nil, false, nil
	case bodyFixed:
		return b.readFixed(maxBytes, readLength, timeout)
	default:
		return b.readChunked(maxBytes, readLength, timeout)
	}
}

func (b *bodyReader) readFixed(maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	if b.fixedRemaining == 0 {
		return nil, false, nil
	}
	n := readLength
	if maxBytes < n {
		n = maxBytes
	}
	if int64(n) > b.fixedRemaining {
		n = int(b.fixedRemaining)
	}
	if n <= 0 {
		return nil, b.fixedRemaining > 0, nil
	}

	b.c.nc.SetReadDeadline(timeDeadline(timeout))
	data, err := b.c.readSome(n)
	if err != nil {
		return nil, false, err
	}
	b.fixedRemaining -= int64(len(data))
	return data, b.fixedRemaining > 0, nil
}

func (b *bodyReader) readChunked(maxBytes, readLength int, timeout time.Duration) ([]byte, bool, error) {
	b.c.nc.SetReadDeadline(timeDeadline(timeout))

	var out []byte
	for len(out) < maxBytes && len(out) < readLength {
		if b.chunkDone {
			return out, false, nil
		}
		if b.chunkRemaining == 0 {
			if err := b.nextChunkSize(); err != nil {
				return out, false, err
			}
			if b.chunkDone {
				return out, false, nil
			}
		}

		want := readLength - len(out)
		if maxBytes-len(out) < want {
			want = maxBytes - len(out)
		}
		if int64(want) > b.chunkRemaining {
			want = int(b.chunkRemaining)
		}
		if want <= 0 {
			break
		}

		data, err := b.c.readSome(want)
		if err != nil {
			return out, false, err
		}
		out = append(out, data...)
		b.chunkRemaining -= int64(len(data))

		if b.chunkRemaining == 0 {
			if _, err := b.c.readExact(2); err != nil { // trailing CRLF
				return out, false, err
			}
		}
	}
	return out, !b.chunkDone, nil
}

// nextChunkSize reads a "<hex>[;ext]\r\n" line and sets chunkRemaining,
// or consumes the terminating zero-chunk and any trailer headers.
func (b *bodyReader) nextChunkSize() error {
	line, err := b.c.readLine(b.c.cfg.MaxHeaderLength, errHeaderLineTooLong)
	if err != nil {
		return err
	}
	line = trimCRLF(line)
	if idx := bytes.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(line)), 16, 64)
	if err != nil || size < 0 {
		return errBadChunkSize
	}
	if size == 0 {
		// Trailer section: read and discard until the blank line.
		for {
			tl, err := b.c.readLine(b.c.cfg.MaxHeaderLength, errHeaderLineTooLong)
			if err != nil {
				return err
			}
			if len(trimCRLF(tl)) == 0 {
				break
			}
		}
		b.chunkDone = true
		return nil
	}
	b.chunkRemaining = size
	return nil
}

// discard reads and throws away any body bytes the handler never
// consumed, so the next request on a reused connection starts at the
// right offset.
func (b *bodyReader) discard() error {
	for {
		data, more, err := b.ReadBody(context.Background(), 1<<20, 1<<16, 30*time.Second)
		if err != nil {
			return err
		}
		_ = data
		if !more {
			return nil
		}
	}
}

func timeDeadline(d time.Duration) time.Time {
	if d <= 0 {
		d = 60 * time.Second
	}
	return time.Now().Add(d)
}
