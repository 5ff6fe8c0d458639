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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/httpd/transport"
)

func baseFields() transport.Headers {
	return transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: ":path", Value: "/a/b"},
	}
}

func TestValidateRequestFieldsOK(t *testing.T) {
	fields := append(baseFields(), transport.Header{Name: "accept", Value: "*/*"})
	vr, err := validateRequestFields(1, fields)
	require.NoError(t, err)
	require.Equal(t, "GET", vr.method)
	require.Equal(t, "/a/b", vr.path)
}

func TestValidateRequestFieldsSplitsPathAndQuery(t *testing.T) {
	fields := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/a/b?x=1"},
	}
	vr, err := validateRequestFields(1, fields)
	require.NoError(t, err)
	require.Equal(t, "/a/b", vr.path)
	require.Equal(t, "x=1", vr.query)
}

func TestValidateRequestFieldsRejectsUppercaseHeaderName(t *testing.T) {
	fields := append(baseFields(), transport.Header{Name: "Accept", Value: "*/*"})
	_, err := validateRequestFields(1, fields)
	require.Error(t, err)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	require.Equal(t, ErrProtocolError, se.Code)
}

func TestValidateRequestFieldsRejectsConnectionSpecificHeader(t *testing.T) {
	fields := append(baseFields(), transport.Header{Name: "connection", Value: "keep-alive"})
	_, err := validateRequestFields(1, fields)
	require.Error(t, err)
}

func TestValidateRequestFieldsRejectsTEOtherThanTrailers(t *testing.T) {
	fields := append(baseFields(), transport.Header{Name: "te", Value: "gzip"})
	_, err := validateRequestFields(1, fields)
	require.Error(t, err)
}

func TestValidateRequestFieldsAllowsTETrailers(t *testing.T) {
	fields := append(baseFields(), transport.Header{Name: "te", Value: "trailers"})
	_, err := validateRequestFields(1, fields)
	require.NoError(t, err)
}

func TestValidateRequestFieldsJoinsCookies(t *testing.T) {
	fields := append(baseFields(),
		transport.Header{Name: "cookie", Value: "a=1"},
		transport.Header{Name: "cookie", Value: "b=2"},
	)
	vr, err := validateRequestFields(1, fields)
	require.NoError(t, err)
	v, ok := vr.headers.Get("cookie")
	require.True(t, ok)
	require.Equal(t, "a=1; b=2", v)
}

func TestValidateRequestFieldsRejectsDotDotPath(t *testing.T) {
	fields := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/a/../b"},
	}
	_, err := validateRequestFields(1, fields)
	require.Error(t, err)
}

func TestValidateRequestFieldsRejectsMissingPseudoHeader(t *testing.T) {
	fields := transport.Headers{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/a"},
	}
	_, err := validateRequestFields(1, fields)
	require.Error(t, err)
}

func TestValidateRequestFieldsRejectsInconsistentContentLength(t *testing.T) {
	fields := append(baseFields(),
		transport.Header{Name: "content-length", Value: "5"},
		transport.Header{Name: "content-length", Value: "6"},
	)
	_, err := validateRequestFields(1, fields)
	require.Error(t, err)
}
