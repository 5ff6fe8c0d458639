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

// Package cmd is the relayhttpd CLI: a spf13/cobra command tree rooted
// at rootCmd, with serve and version as its two subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version, gitHash and buildTime are set by the linker at build time
// (see cmd/relayhttpd's -ldflags) and surfaced by the version command.
// The admin server's /-/build route reports common.GetBuildInfo instead.
var (
	version   = "dev"
	gitHash   = "unknown"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "relayhttpd",
	Short: "relayhttpd is an HTTP/1.1 and HTTP/2 server core",
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
