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

// Package adminserver exposes the server's operational surface on a
// separate plaintext listener: Prometheus metrics, pprof profiles, a
// build-info endpoint and a self-reload trigger. It never touches the
// HTTP/1.1 or HTTP/2 transports that serve application traffic.
package adminserver

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaycore/httpd/common"
	"github.com/relaycore/httpd/internal/sigs"
	"github.com/relaycore/httpd/logger"
)

// Config controls the admin listener. It is unpacked from the "admin"
// sub-tree of the server config.
type Config struct {
	Enabled bool          `config:"enabled" mapstructure:"enabled"`
	Address string        `config:"address" mapstructure:"address"`
	Pprof   bool          `config:"pprof" mapstructure:"pprof"`
	Timeout time.Duration `config:"timeout" mapstructure:"timeout"`
}

// DefaultConfig matches spec.md's ambient-observability defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Address: "127.0.0.1:8081",
		Pprof:   false,
		Timeout: 30 * time.Second,
	}
}

// Server is the admin HTTP surface. A nil *Server (returned by New when
// Enabled is false) is valid and ListenAndServe on it is a no-op.
type Server struct {
	config      Config
	router      *mux.Router
	server      *http.Server
	configPatch func(map[string]any) error
}

// SetConfigPatcher wires the handler for POST /-/config: fn receives the
// decoded JSON body and applies it to the owning server's live config.
// Until this is called, /-/config reports 503.
func (s *Server) SetConfigPatcher(fn func(map[string]any) error) {
	s.configPatch = fn
}

// New builds a Server from config, or returns nil when the admin
// surface is disabled — callers must check for a nil return before use.
func New(conf Config) *Server {
	if !conf.Enabled {
		return nil
	}

	router := mux.NewRouter()
	s := &Server{
		config: conf,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  conf.Timeout,
			WriteTimeout: conf.Timeout,
		},
	}
	s.registerGetRoute("/metrics", promhttp.Handler().ServeHTTP)
	s.registerGetRoute("/-/build", s.handleBuildInfo)
	s.registerPostRoute("/-/reload", s.handleReload)
	s.registerPostRoute("/-/logger", s.handleLogger)
	s.registerPostRoute("/-/config", s.handleConfigPatch)
	if conf.Pprof {
		s.registerPprofRoutes()
	}
	return s
}

// ListenAndServe blocks serving the admin surface until the listener or
// http.Server errors, typically on shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("admin server listening on %s", s.config.Address)
	return s.server.Serve(l)
}

// Shutdown gracefully drains in-flight admin requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerGetRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
}

func (s *Server) registerPostRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodPost).Path(path).HandlerFunc(f)
}

func (s *Server) registerPprofRoutes() {
	s.registerGetRoute("/debug/pprof/cmdline", pprof.Cmdline)
	s.registerGetRoute("/debug/pprof/profile", pprof.Profile)
	s.registerGetRoute("/debug/pprof/symbol", pprof.Symbol)
	s.registerGetRoute("/debug/pprof/trace", pprof.Trace)
	s.registerGetRoute("/debug/pprof/{other}", pprof.Index)
}

func (s *Server) handleBuildInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(common.GetBuildInfo())
}

// handleReload sends this process SIGHUP, routing through the same
// reload path as an operator-issued signal.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := sigs.SelfReload(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleConfigPatch applies a partial JSON config document onto the
// owning server's live config without a full reload, e.g.
// POST /-/config {"http1": {"read_timeout": "5s"}}.
func (s *Server) handleConfigPatch(w http.ResponseWriter, r *http.Request) {
	if s.configPatch == nil {
		http.Error(w, "config patching is not wired up", http.StatusServiceUnavailable)
		return
	}
	var overrides map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.configPatch(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleLogger changes the running logger's level without a restart,
// e.g. POST /-/logger?level=debug.
func (s *Server) handleLogger(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	if level == "" {
		http.Error(w, "missing level query parameter", http.StatusBadRequest)
		return
	}
	logger.SetLoggerLevel(level)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"level": level})
}
