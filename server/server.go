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

package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/relaycore/httpd/adminserver"
	"github.com/relaycore/httpd/confengine"
	"github.com/relaycore/httpd/http1"
	"github.com/relaycore/httpd/http2"
	"github.com/relaycore/httpd/internal/rescue"
	"github.com/relaycore/httpd/logger"
	"github.com/relaycore/httpd/transport"
)

// Server owns the application listener (and, alongside it, the optional
// admin listener) and dispatches each accepted connection to whichever
// transport — http1 or http2 — the handshake selects.
type Server struct {
	mu      sync.Mutex
	cfg     Config
	handler transport.Handler
	admin   *adminserver.Server

	listener net.Listener
	conns    map[net.Conn]struct{}
}

// New loads a Config from the "server" section of conf and builds a
// Server around handler, the application's transport.Handler.
func New(conf *confengine.Config, handler transport.Handler) (*Server, error) {
	cfg := DefaultConfig()
	if err := conf.UnpackChild("server", &cfg); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		admin:   adminserver.New(cfg.Admin),
		conns:   make(map[net.Conn]struct{}),
	}
	if s.admin != nil {
		s.admin.SetConfigPatcher(s.patchConfig)
	}
	return s, nil
}

// patchConfig applies a partial config document onto the live http1/http2
// sub-configs, the same fields Reload would otherwise replace wholesale.
// It never touches Address or TLS, which only take effect on next accept
// loop restart, nor Admin, whose own listener is already running.
func (s *Server) patchConfig(overrides map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	if err := confengine.ApplyOverrides(overrides, &cfg); err != nil {
		return err
	}
	cfg.Address = s.cfg.Address
	cfg.TLS = s.cfg.TLS
	cfg.Admin = s.cfg.Admin
	s.cfg = cfg
	return nil
}

// ListenAndServe opens the application listener (TLS-wrapped when
// cfg.TLS.Enabled) and the admin listener, and blocks accepting
// connections until Close is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			ln.Close()
			return err
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		})
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.admin != nil {
		go func() {
			if err := s.admin.ListenAndServe(); err != nil {
				logger.Errorf("admin server stopped: %v", err)
			}
		}()
	}

	logger.Infof("server listening on %s (tls=%v)", s.cfg.Address, s.cfg.TLS.Enabled)
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			return err
		}
		s.track(nc)
		go s.handleConn(nc)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener == nil
}

func (s *Server) track(nc net.Conn) {
	s.mu.Lock()
	s.conns[nc] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(nc net.Conn) {
	s.mu.Lock()
	delete(s.conns, nc)
	s.mu.Unlock()
}

// handleConn picks a transport and runs its Serve loop, recovering any
// panic that escapes the transport implementation itself (as opposed
// to the application callback, which internal/rescue already guards
// inside each transport).
func (s *Server) handleConn(nc net.Conn) {
	defer s.untrack(nc)
	defer rescue.HandleCrash()
	defer nc.Close()

	ctx := context.WithValue(context.Background(), connIDKey{}, uuid.New().String())

	if tc, ok := nc.(*tls.Conn); ok {
		if err := tc.Handshake(); err != nil {
			logger.Warnf("tls handshake failed: %v", err)
			return
		}
		if tc.ConnectionState().NegotiatedProtocol == "h2" {
			http2.NewConn(nc, s.cfg.HTTP2).Serve(ctx, s.handler)
			return
		}
		http1.NewConn(nc, s.cfg.HTTP1).Serve(ctx, s.handler)
		return
	}

	// Plaintext: sniff for h2c prior knowledge before committing to
	// HTTP/1.1, since both share the same listener.
	br := bufio.NewReaderSize(nc, 4096)
	if ok, err := http2.PrefaceLookahead(br); err == nil && ok {
		http2.NewConn(http2.NewPriorKnowledgeConn(nc, br), s.cfg.HTTP2).Serve(ctx, s.handler)
		return
	}
	http1.NewConn(&bufferedConn{Conn: nc, br: br}, s.cfg.HTTP1).Serve(ctx, s.handler)
}

type connIDKey struct{}

// bufferedConn re-exposes a bufio.Reader's already-buffered bytes (left
// over from h2c preface sniffing) through the net.Conn interface, so
// http1.NewConn sees every byte the client sent.
type bufferedConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}

// Close stops accepting new connections and closes every connection
// currently being served, aggregating any close errors.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := make([]net.Conn, 0, len(s.conns))
	for nc := range s.conns {
		conns = append(conns, nc)
	}
	s.mu.Unlock()

	var result *multierror.Error
	if ln != nil {
		if err := ln.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.admin != nil {
		if err := s.admin.Shutdown(context.Background()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, nc := range conns {
		if err := nc.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Reload swaps in a freshly loaded Config without closing the listener
// or any in-flight connection; only connections accepted after Reload
// returns observe the new http1/http2 settings.
func (s *Server) Reload(conf *confengine.Config) error {
	cfg := DefaultConfig()
	if err := conf.UnpackChild("server", &cfg); err != nil {
		return err
	}
	s.mu.Lock()
	cfg.Address = s.cfg.Address // the listener address never hot-reloads
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
