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
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/relaycore/httpd/internal/mailbox"
	"github.com/relaycore/httpd/logger"
	"github.com/relaycore/httpd/metrics"
	"github.com/relaycore/httpd/transport"
)

// Mailbox message kinds exchanged between the connection task and a
// stream worker.
const (
	msgData    = "data"
	msgRST     = "rst"
	mailboxCap = 32
)

// Config is the HTTP/2 transport's tunable surface, unpacked from the
// http2 section of server.Config (local SETTINGS under local_settings).
type Config struct {
	Local             Settings      `config:"local_settings" mapstructure:"local_settings"`
	MaxHeaderListSize uint32        `config:"max_header_list_size" mapstructure:"max_header_list_size"`
	SettingsTimeout   time.Duration `config:"settings_timeout" mapstructure:"settings_timeout"`
	IdleTimeout       time.Duration `config:"idle_timeout" mapstructure:"idle_timeout"`
}

func DefaultConfig() Config {
	local := DefaultLocalSettings()
	return Config{
		Local:             local,
		MaxHeaderListSize: 1 << 20,
		SettingsTimeout:   10 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}
}

type writeKind int

const (
	writeHeaders writeKind = iota
	writeInformational
	writeData
	writeReset
)

// writeRequest is how a stream worker asks the connection task, the
// sole writer of the socket and owner of the HPACK encoder, to emit
// frames on its behalf.
type writeRequest struct {
	kind      writeKind
	streamID  uint32
	headers   transport.Headers
	status    int
	data      []byte
	endStream bool
	rst       ErrCode
	done      chan error
}

type frameResult struct {
	f   Frame
	err error
}

// Conn drives one HTTP/2 connection: frame reading, protocol state,
// and (being the sole writer) HPACK encoding and frame serialization.
// A dedicated goroutine reads frames and hands them to the goroutine
// that calls Serve, which runs everything else; stream workers only
// ever reach the socket through writeCh.
type Conn struct {
	nc     net.Conn
	cfg    Config
	connID string
	tlsCS  *tls.ConnectionState

	fr *FrameReader
	fw *FrameWriter
	hp *hpackState

	local  Settings
	remote Settings

	connSendWindow *flowWindow
	connRecvWindow *flowWindow
	sendQueue      *sendQueue

	streams    map[uint32]*Stream
	lastStream uint32
	goAway     bool

	registry *mailbox.Registry
	writeCh  chan writeRequest

	fragmentStreamID uint32 // 0 when not mid-HEADERS-block
	fragmentEnd      bool
}

func NewConn(nc net.Conn, cfg Config) *Conn {
	var tlsCS *tls.ConnectionState
	if tc, ok := nc.(*tls.Conn); ok {
		cs := tc.ConnectionState()
		tlsCS = &cs
	}
	return &Conn{
		nc:             nc,
		cfg:            cfg,
		connID:         uuid.New().String(),
		tlsCS:          tlsCS,
		local:          cfg.Local,
		remote:         DefaultRemoteSettings(),
		connSendWindow: newFlowWindow(DefaultRemoteSettings().InitialWindowSize),
		connRecvWindow: newFlowWindow(cfg.Local.InitialWindowSize),
		sendQueue:      newSendQueue(),
		streams:        make(map[uint32]*Stream),
		registry:       mailbox.NewRegistry(),
		writeCh:        make(chan writeRequest, 8),
	}
}

// Serve reads the connection preface, negotiates SETTINGS, and runs
// the frame dispatch loop until a fatal error or graceful GOAWAY.
// handler is invoked once per stream on its own worker goroutine.
func (c *Conn) Serve(ctx context.Context, handler transport.Handler) error {
	defer c.registry.CloseAll()

	metrics.ConnectionsActive.WithLabelValues("http2").Inc()
	defer metrics.ConnectionsActive.WithLabelValues("http2").Dec()

	br := bufio.NewReaderSize(c.nc, 4096)
	preface := make([]byte, len(ClientPreface))
	if _, err := io.ReadFull(br, preface); err != nil {
		return err
	}
	if string(preface) != ClientPreface {
		return &ConnError{Code: ErrProtocolError, Msg: "bad connection preface"}
	}

	c.hp = newHPACKState(c.local.HeaderTableSize)
	c.hp.SetMaxHeaderListLen(uint64(c.cfg.MaxHeaderListSize))
	c.fr = NewFrameReader(br, c.local.MaxFrameSize)
	c.fw = NewFrameWriter(c.nc, c.remote.MaxFrameSize)

	if err := c.fw.WriteSimple(FrameSettings, 0, 0, c.local.Encode()); err != nil {
		return err
	}

	frames := make(chan frameResult, 4)
	go func() {
		for {
			f, err := c.fr.ReadFrame()
			frames <- frameResult{f: f, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case fr := <-frames:
			if fr.err != nil {
				if fr.err == io.EOF {
					return nil
				}
				c.fatal(fr.err)
				return fr.err
			}
			if err := c.dispatch(ctx, fr.f, handler); err != nil {
				c.fatal(err)
				return err
			}
			if c.goAway {
				return nil
			}
		case wr := <-c.writeCh:
			c.handleWrite(wr)
		}
	}
}

func (c *Conn) fatal(err error) {
	code := ErrInternalError
	if ce, ok := err.(*ConnError); ok {
		code = ce.Code
	}
	goAwayPayload := make([]byte, 8)
	putUint32(goAwayPayload[0:4], c.lastStream)
	putUint32(goAwayPayload[4:8], uint32(code))
	if c.fw != nil {
		_ = c.fw.WriteSimple(FrameGoAway, 0, 0, goAwayPayload)
	}
	logger.Errorf("http2 conn %s fatal: %v", c.connID, err)
	c.nc.Close()
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func (c *Conn) dispatch(ctx context.Context, f Frame, handler transport.Handler) error {
	metrics.FramesTotal.WithLabelValues(f.Type.String()).Inc()

	if c.fragmentStreamID != 0 && f.Type != FrameContinuation {
		return &ConnError{Code: ErrProtocolError, Msg: "expected CONTINUATION"}
	}

	switch f.Type {
	case FrameSettings:
		return c.handleSettings(f)
	case FramePing:
		return c.handlePing(f)
	case FrameGoAway:
		c.goAway = true
		return nil
	case FrameWindowUpdate:
		return c.handleWindowUpdate(f)
	case FrameHeaders:
		return c.handleHeaders(ctx, f, handler)
	case FrameContinuation:
		return c.handleContinuation(ctx, f, handler)
	case FrameData:
		return c.handleData(f)
	case FramePriority:
		return c.handlePriority(f)
	case FrameRSTStream:
		return c.handleRSTStream(f)
	case FramePushPromise:
		return &ConnError{Code: ErrProtocolError, Msg: "PUSH_PROMISE not accepted by a server"}
	default:
		return nil // unknown frame types are ignored (RFC 9113 §4.1)
	}
}

func (c *Conn) handleSettings(f Frame) error {
	if f.Has(FlagAck) {
		return nil
	}
	updates, err := DecodeSettings(f.Payload)
	if err != nil {
		return err
	}
	prevWindow, err := c.remote.Apply(updates)
	if err != nil {
		return err
	}
	delta := int64(c.remote.InitialWindowSize) - int64(prevWindow)
	if delta != 0 {
		for _, s := range c.streams {
			if err := s.sendWin.ApplyInitialWindowDelta(delta); err != nil {
				return err
			}
		}
	}
	c.hp.SetEncoderTableSize(c.remote.HeaderTableSize)
	c.fw.SetPeerMaxFrameSize(c.remote.MaxFrameSize)
	return c.fw.WriteSimple(FrameSettings, FlagAck, 0, nil)
}

func (c *Conn) handlePing(f Frame) error {
	if f.Has(FlagAck) {
		return nil
	}
	return c.fw.WriteSimple(FramePing, FlagAck, 0, f.Payload)
}

func (c *Conn) handleWindowUpdate(f Frame) error {
	if len(f.Payload) != 4 {
		return &ConnError{Code: ErrFrameSizeError, Msg: "bad WINDOW_UPDATE length"}
	}
	inc := beUint32(f.Payload) & 0x7fffffff
	if f.StreamID == 0 {
		if err := c.connSendWindow.Increment(inc); err != nil {
			return err
		}
	} else {
		s, ok := c.streams[f.StreamID]
		if !ok {
			return nil
		}
		if err := s.sendWin.Increment(inc); err != nil {
			return &StreamError{StreamID: f.StreamID, Code: ErrFlowControlError, Msg: "window overflow"}
		}
	}
	c.pump()
	return nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// pump resumes every stream with buffered, window-blocked output after
// the connection or a stream's send window grows, re-enqueueing
// whatever is still unsent.
func (c *Conn) pump() {
	for _, p := range c.sendQueue.Drain() {
		c.writeDataWindowed(p.streamID, p.data, p.endStream, p.done)
	}
}

func (c *Conn) handlePriority(f Frame) error {
	if len(f.Payload) < 5 {
		return &StreamError{StreamID: f.StreamID, Code: ErrFrameSizeError, Msg: "short PRIORITY frame"}
	}
	dep := beUint32(f.Payload[0:4]) & 0x7fffffff
	if dep == f.StreamID {
		return &StreamError{StreamID: f.StreamID, Code: ErrProtocolError, Msg: "stream depends on itself"}
	}
	return nil
}

// pruneStream removes a fully-closed stream from the admission-counted
// map and tears down its mailbox. Only ever called from the Serve
// goroutine, the sole mutator of c.streams.
func (c *Conn) pruneStream(streamID uint32) {
	delete(c.streams, streamID)
	c.registry.Close(streamID)
}

func (c *Conn) handleRSTStream(f Frame) error {
	if s, ok := c.streams[f.StreamID]; ok {
		s.mu.Lock()
		s.state = streamClosed
		s.mu.Unlock()
		c.pruneStream(f.StreamID)
	}
	return nil
}

func (c *Conn) handleHeaders(ctx context.Context, f Frame, handler transport.Handler) error {
	c.hp.BeginBlock()
	if err := c.hp.WriteFragment(stripPadding(f)); err != nil {
		return &ConnError{Code: ErrCompressionError, Msg: err.Error()}
	}
	if !f.Has(FlagEndHeaders) {
		c.fragmentStreamID = f.StreamID
		c.fragmentEnd = f.Has(FlagEndStream)
		return nil
	}
	return c.finishHeaders(ctx, f.StreamID, f.Has(FlagEndStream), handler)
}

func (c *Conn) handleContinuation(ctx context.Context, f Frame, handler transport.Handler) error {
	if c.fragmentStreamID == 0 || f.StreamID != c.fragmentStreamID {
		return &ConnError{Code: ErrProtocolError, Msg: "unexpected CONTINUATION"}
	}
	if err := c.hp.WriteFragment(f.Payload); err != nil {
		return &ConnError{Code: ErrCompressionError, Msg: err.Error()}
	}
	if !f.Has(FlagEndHeaders) {
		return nil
	}
	streamID, endStream := c.fragmentStreamID, c.fragmentEnd
	c.fragmentStreamID = 0
	return c.finishHeaders(ctx, streamID, endStream, handler)
}

func (c *Conn) finishHeaders(ctx context.Context, streamID uint32, endStream bool, handler transport.Handler) error {
	fields, err := c.hp.Finish()
	if err != nil {
		return err
	}

	if streamID%2 == 0 || streamID <= c.lastStream {
		return &ConnError{Code: ErrProtocolError, Msg: "invalid stream id"}
	}
	c.lastStream = streamID
	if uint32(len(c.streams)) >= c.local.MaxConcurrentStreams {
		return c.resetStream(streamID, ErrRefusedStream)
	}

	vr, verr := validateRequestFields(streamID, fields)
	if verr != nil {
		return c.resetStreamErr(verr)
	}

	box := c.registry.Open(streamID, mailboxCap)
	req := &transport.Request{
		Method:    vr.method,
		Scheme:    vr.scheme,
		Authority: vr.authority,
		Path:      vr.path,
		Query:     vr.query,
		Headers:   vr.headers,
		Version:   transport.VersionHTTP2,
		PeerAddr:  c.nc.RemoteAddr(),
		LocalAddr: c.nc.LocalAddr(),
		TLSState:  c.tlsCS,
		ConnID:    c.connID,
	}
	st := newStream(streamID, box, c.remote.InitialWindowSize, c.local.InitialWindowSize, req)
	c.streams[streamID] = st
	if endStream && st.CloseRemote() {
		c.pruneStream(streamID)
	}

	metrics.StreamsActive.Inc()
	go c.runWorker(ctx, st, handler)
	return nil
}

// stripPadding removes HEADERS frame padding (RFC 9113 §6.2) before
// the payload is fed to the HPACK decoder.
func stripPadding(f Frame) []byte {
	p := f.Payload
	if !f.Has(FlagPadded) || len(p) == 0 {
		if f.Has(FlagPriority) && len(p) >= 5 {
			return p[5:]
		}
		return p
	}
	padLen := int(p[0])
	p = p[1:]
	if f.Has(FlagPriority) && len(p) >= 5 {
		p = p[5:]
	}
	if padLen > len(p) {
		return nil
	}
	return p[:len(p)-padLen]
}

func (c *Conn) resetStream(streamID uint32, code ErrCode) error {
	return c.resetStreamErr(&StreamError{StreamID: streamID, Code: code})
}

func (c *Conn) resetStreamErr(err error) error {
	se, ok := err.(*StreamError)
	if !ok {
		return err
	}
	payload := make([]byte, 4)
	putUint32(payload, uint32(se.Code))
	if werr := c.fw.WriteSimple(FrameRSTStream, 0, se.StreamID, payload); werr != nil {
		return werr
	}
	if s, ok := c.streams[se.StreamID]; ok {
		s.mu.Lock()
		s.state = streamClosed
		s.mu.Unlock()
	}
	c.pruneStream(se.StreamID)
	return nil
}

const windowLowWatermarkDivisor = 2
const maxWindowIncrement = maxWindowSize

func (c *Conn) handleData(f Frame) error {
	n := int64(len(f.Payload))

	c.connRecvWindow.Consume(n)
	if c.connRecvWindow.Size() < int64(c.local.InitialWindowSize/windowLowWatermarkDivisor) {
		inc := uint32(maxWindowIncrement - c.connRecvWindow.Size())
		if err := c.connRecvWindow.Increment(inc); err == nil {
			putAndSend := make([]byte, 4)
			putUint32(putAndSend, inc)
			_ = c.fw.WriteSimple(FrameWindowUpdate, 0, 0, putAndSend)
		}
	}

	s, ok := c.streams[f.StreamID]
	if !ok {
		return nil // bytes already accounted against the connection window
	}
	if !s.CanReceiveFrames() {
		return c.resetStream(f.StreamID, ErrStreamClosed)
	}

	s.recvWin.Consume(n)
	if s.recvWin.Size() < int64(c.local.InitialWindowSize/windowLowWatermarkDivisor) {
		inc := uint32(maxWindowIncrement - s.recvWin.Size())
		if err := s.recvWin.Increment(inc); err == nil {
			payload := make([]byte, 4)
			putUint32(payload, inc)
			_ = c.fw.WriteSimple(FrameWindowUpdate, 0, f.StreamID, payload)
		}
	}

	data := make([]byte, len(f.Payload))
	copy(data, f.Payload)
	if box, ok := c.registry.Get(f.StreamID); ok {
		box.Push(mailbox.Message{Kind: msgData, Data: data})
	}
	if f.Has(FlagEndStream) {
		if box, ok := c.registry.Get(f.StreamID); ok {
			box.Push(mailbox.Message{Kind: msgData, Data: []byte(nil)})
		}
		if s.CloseRemote() {
			c.pruneStream(f.StreamID)
		}
	}
	return nil
}

// handleWrite serializes one stream worker's outbound request onto the
// wire. It is only ever called on the Serve goroutine. writeData and a
// writeHeaders carrying a body delegate wr.done to writeDataWindowed,
// which may defer it past this call if the send blocks on flow control
// and has to be resumed later by pump; every other branch signals
// wr.done itself before returning.
func (c *Conn) handleWrite(wr writeRequest) {
	switch wr.kind {
	case writeInformational:
		headers := append(transport.Headers{{Name: ":status", Value: statusText(wr.status)}}, wr.headers...)
		block := c.hp.Encode(headers)
		err := c.fw.WriteHeaders(wr.streamID, block, false)
		if wr.done != nil {
			wr.done <- err
		}
	case writeReset:
		payload := make([]byte, 4)
		putUint32(payload, uint32(wr.rst))
		err := c.fw.WriteSimple(FrameRSTStream, 0, wr.streamID, payload)
		if s, ok := c.streams[wr.streamID]; ok {
			s.mu.Lock()
			s.state = streamClosed
			s.mu.Unlock()
			c.pruneStream(wr.streamID)
		}
		if wr.done != nil {
			wr.done <- err
		}
	case writeHeaders:
		headers := append(transport.Headers{{Name: ":status", Value: statusText(wr.status)}}, wr.headers...)
		block := c.hp.Encode(headers)
		err := c.fw.WriteHeaders(wr.streamID, block, wr.endStream && len(wr.data) == 0)
		if err != nil {
			if wr.done != nil {
				wr.done <- err
			}
			return
		}
		if len(wr.data) > 0 {
			c.writeDataWindowed(wr.streamID, wr.data, wr.endStream, wr.done)
			return
		}
		if wr.endStream {
			if s, ok := c.streams[wr.streamID]; ok && s.CloseLocal() {
				c.pruneStream(wr.streamID)
			}
		}
		if wr.done != nil {
			wr.done <- nil
		}
	case writeData:
		c.writeDataWindowed(wr.streamID, wr.data, wr.endStream, wr.done)
	}
}

// writeDataWindowed sends data honoring both the connection and stream
// send windows. When window room runs out mid-write it stores the
// unsent remainder (and endStream flag) on sendQueue, keyed by
// streamID, instead of signaling done: pump resumes the send from
// there once a WINDOW_UPDATE arrives, so done only fires once every
// byte has actually reached the wire.
func (c *Conn) writeDataWindowed(streamID uint32, data []byte, endStream bool, done chan error) {
	s, ok := c.streams[streamID]
	if !ok {
		if done != nil {
			done <- &StreamError{StreamID: streamID, Code: ErrStreamClosed, Msg: "stream gone"}
		}
		return
	}
	for len(data) > 0 {
		avail := s.sendWin.Size()
		if avail > c.connSendWindow.Size() {
			avail = c.connSendWindow.Size()
		}
		if avail <= 0 {
			metrics.FlowControlStallsTotal.Inc()
			c.sendQueue.Enqueue(&pendingSend{streamID: streamID, data: data, endStream: endStream, done: done})
			return
		}
		n := int64(len(data))
		if n > avail {
			n = avail
		}
		last := n == int64(len(data))
		if err := c.fw.WriteDataFragment(streamID, data[:n], last && endStream); err != nil {
			if done != nil {
				done <- err
			}
			return
		}
		s.sendWin.Consume(n)
		c.connSendWindow.Consume(n)
		data = data[n:]
	}
	if endStream && s.CloseLocal() {
		c.pruneStream(streamID)
	}
	if done != nil {
		done <- nil
	}
}

func statusText(status int) string {
	if status == 0 {
		status = 200
	}
	return itoa(status)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
