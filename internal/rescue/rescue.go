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

// Package rescue recovers panics raised by the application callback so one
// misbehaving handler cannot take down a connection task or a stream worker.
package rescue

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relaycore/httpd/common"
	"github.com/relaycore/httpd/logger"
)

var panicTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "callback_panic_total",
		Help:      "total panics recovered from the application callback",
	},
)

var PanicHandlers = []func(any){
	incPanicCounter,
	logPanic,
}

func incPanicCounter(_ any) {
	panicTotal.Inc()
}

func logPanic(r any) {
	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		logger.Errorf("callback panic: %s\n%s", r, stacktrace)
	} else {
		logger.Errorf("callback panic: %#v (%v)\n%s", r, r, stacktrace)
	}
}

// HandleCrash runs the registered PanicHandlers against a recovered value.
// Call from a deferred recover() when the caller has no response of its own
// to produce (e.g. a background goroutine).
func HandleCrash() {
	if r := recover(); r != nil {
		for _, fn := range PanicHandlers {
			fn(r)
		}
	}
}

// Call invokes fn and converts any panic into an error instead of letting it
// propagate, running the same PanicHandlers HandleCrash does. The caller
// (the HTTP/1 connection task or an HTTP/2 stream worker) uses the returned
// error to decide how to terminate the in-flight request.
func Call(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			for _, h := range PanicHandlers {
				h(r)
			}
			err = fmt.Errorf("application callback panic: %v", r)
		}
	}()
	fn()
	return nil
}
