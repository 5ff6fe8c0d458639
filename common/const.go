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

package common

const (
	// App is the program name used for metrics namespacing and log files.
	App = "relayhttpd"

	// Version is the fallback build version when no linker-injected value
	// is present.
	Version = "v0.0.1"

	// ReadWriteBlockSize is the default read chunk size pulled off a raw
	// socket before handing bytes to a transport's incremental parser.
	//
	// Matches the maximum size HTTP/2 frame codec wants to read in one
	// socket call without over-allocating per connection.
	ReadWriteBlockSize = 4096
)
