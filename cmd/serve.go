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

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaycore/httpd/confengine"
	"github.com/relaycore/httpd/internal/sigs"
	"github.com/relaycore/httpd/logger"
	"github.com/relaycore/httpd/server"
	"github.com/relaycore/httpd/transport"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/1.1 and HTTP/2 server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		srv, err := server.New(cfg, echoHandler)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
			os.Exit(1)
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Errorf("server stopped: %v", err)
			}
		}()

		var reloadTotal int
		for {
			select {
			case <-sigs.Terminate():
				_ = srv.Close()
				return

			case <-sigs.Reload():
				reloadTotal++

				cfg, err := confengine.LoadConfigPath(configPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to load config (count=%d): %v\n", reloadTotal, err)
					continue
				}

				start := time.Now()
				if err := srv.Reload(cfg); err != nil {
					logger.Errorf("failed to reload config: %v", err)
				}
				logger.Infof("reload (count=%d) took %s", reloadTotal, time.Since(start))
			}
		}
	},
	Example: "# relayhttpd serve --config relayhttpd.yaml",
}

// echoHandler is the binary's built-in placeholder callback: the
// business logic an operator plugs in is out of this repository's
// scope (spec.md §1's Non-goals), so `serve` ships one trivial
// handler — echo the request body back, with the request method in an
// x-relayhttpd-method response header —
// just enough to prove both transports work end to end.
func echoHandler(ctx context.Context, ex transport.Exchange) {
	req := ex.Request()

	var body []byte
	for {
		chunk, more, err := ex.ReadBody(ctx, 1<<20, 64*1024, 30*time.Second)
		body = append(body, chunk...)
		if err != nil || !more {
			break
		}
	}

	headers := transport.Headers{{Name: "x-relayhttpd-method", Value: req.Method}}
	_ = ex.SendResponse(ctx, transport.ResponseSpec{
		Status:  200,
		Kind:    transport.BodyFull,
		Headers: headers,
		Full:    body,
	})
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "relayhttpd.yaml", "Configuration file path")
	rootCmd.AddCommand(serveCmd)
}
