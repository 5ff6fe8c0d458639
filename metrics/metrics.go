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

// Package metrics holds the process-wide Prometheus collectors shared by
// the http1 and http2 transports, registered the way internal/rescue
// registers its panic counter: package-level promauto vars, scraped
// through the admin mux's /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relaycore/httpd/common"
)

// ConnectionsActive tracks live connections per transport ("http1"/"http2").
var ConnectionsActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "connections_active",
		Help:      "number of currently open connections, by transport",
	},
	[]string{"proto"},
)

// StreamsActive tracks live HTTP/2 streams across all connections.
var StreamsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "http2_streams_active",
		Help:      "number of currently open HTTP/2 streams",
	},
)

// FramesTotal counts HTTP/2 frames processed, by frame type name.
var FramesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "http2_frames_total",
		Help:      "total HTTP/2 frames received, by frame type",
	},
	[]string{"type"},
)

// FlowControlStallsTotal counts the number of times a DATA write had to be
// re-queued because the connection or stream send window was exhausted.
var FlowControlStallsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "http2_flow_control_stalls_total",
		Help:      "total DATA writes deferred pending a WINDOW_UPDATE",
	},
)

// RequestsTotal counts completed exchanges, by transport and response class
// ("2xx", "4xx", "5xx", ...).
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "requests_total",
		Help:      "total completed HTTP exchanges, by transport and status class",
	},
	[]string{"proto", "class"},
)

// StatusClass buckets an HTTP status code into RequestsTotal's "class" label.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "1xx"
	}
}
