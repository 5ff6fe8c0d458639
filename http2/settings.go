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

import "encoding/binary"

// SettingID identifies one SETTINGS parameter (RFC 9113 §6.5.2).
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// Settings is one side's negotiated SETTINGS state.
type Settings struct {
	HeaderTableSize      uint32 `config:"header_table_size" mapstructure:"header_table_size"`
	EnablePush           bool   `config:"enable_push" mapstructure:"enable_push"`
	MaxConcurrentStreams uint32 `config:"max_concurrent_streams" mapstructure:"max_concurrent_streams"`
	InitialWindowSize    uint32 `config:"initial_window_size" mapstructure:"initial_window_size"`
	MaxFrameSize         uint32 `config:"max_frame_size" mapstructure:"max_frame_size"`
	MaxHeaderListSize    uint32 `config:"max_header_list_size" mapstructure:"max_header_list_size"` // 0 means unlimited
}

// DefaultLocalSettings are this server's initial SETTINGS, matching
// spec.md §6's max_requests/default_local_settings configuration
// surface. Push is always disabled (spec Non-goals).
func DefaultLocalSettings() Settings {
	return Settings{
		HeaderTableSize:      4096,
		EnablePush:           false,
		MaxConcurrentStreams: 100,
		InitialWindowSize:    65535,
		MaxFrameSize:         DefaultMaxFrameSize,
		MaxHeaderListSize:    0,
	}
}

// DefaultRemoteSettings are the RFC 9113 §6.5.2 defaults assumed for
// the peer before its first SETTINGS frame arrives.
func DefaultRemoteSettings() Settings {
	s := DefaultLocalSettings()
	s.EnablePush = true // default assumption; client may still disable
	return s
}

// Encode serializes s as a SETTINGS payload (each field as one 6-byte
// id/value pair, in ascending id order; MaxHeaderListSize is omitted
// when it is 0, i.e. unlimited).
func (s Settings) Encode() []byte {
	buf := make([]byte, 0, 36)
	push := uint32(0)
	if s.EnablePush {
		push = 1
	}
	buf = appendSetting(buf, SettingHeaderTableSize, s.HeaderTableSize)
	buf = appendSetting(buf, SettingEnablePush, push)
	buf = appendSetting(buf, SettingMaxConcurrentStreams, s.MaxConcurrentStreams)
	buf = appendSetting(buf, SettingInitialWindowSize, s.InitialWindowSize)
	buf = appendSetting(buf, SettingMaxFrameSize, s.MaxFrameSize)
	if s.MaxHeaderListSize != 0 {
		buf = appendSetting(buf, SettingMaxHeaderListSize, s.MaxHeaderListSize)
	}
	return buf
}

func appendSetting(buf []byte, id SettingID, value uint32) []byte {
	var tmp [6]byte
	binary.BigEndian.PutUint16(tmp[0:2], uint16(id))
	binary.BigEndian.PutUint32(tmp[2:6], value)
	return append(buf, tmp[:]...)
}

// settingsUpdate is one decoded id/value pair, applied in wire order so
// a SETTINGS frame that repeats an id keeps only its last value.
type settingsUpdate struct {
	id    SettingID
	value uint32
}

// DecodeSettings parses a non-ACK SETTINGS payload, whose length must
// be a multiple of 6.
func DecodeSettings(payload []byte) ([]settingsUpdate, error) {
	if len(payload)%6 != 0 {
		return nil, &ConnError{Code: ErrFrameSizeError, Msg: "SETTINGS payload not a multiple of 6"}
	}
	updates := make([]settingsUpdate, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		id := SettingID(binary.BigEndian.Uint16(payload[i : i+2]))
		value := binary.BigEndian.Uint32(payload[i+2 : i+6])
		updates = append(updates, settingsUpdate{id: id, value: value})
	}
	return updates, nil
}

// Apply folds updates into s in order, returning the previous
// InitialWindowSize so the caller can adjust every open stream's send
// window by the delta (RFC 9113 §6.9.2).
func (s *Settings) Apply(updates []settingsUpdate) (prevInitialWindow uint32, err error) {
	prevInitialWindow = s.InitialWindowSize
	for _, u := range updates {
		switch u.id {
		case SettingHeaderTableSize:
			s.HeaderTableSize = u.value
		case SettingEnablePush:
			if u.value > 1 {
				return prevInitialWindow, &ConnError{Code: ErrProtocolError, Msg: "invalid ENABLE_PUSH value"}
			}
			s.EnablePush = u.value == 1
		case SettingMaxConcurrentStreams:
			s.MaxConcurrentStreams = u.value
		case SettingInitialWindowSize:
			if u.value > maxWindowSize {
				return prevInitialWindow, &ConnError{Code: ErrFlowControlError, Msg: "INITIAL_WINDOW_SIZE exceeds 2^31-1"}
			}
			s.InitialWindowSize = u.value
		case SettingMaxFrameSize:
			if u.value < DefaultMaxFrameSize || u.value > 1<<24-1 {
				return prevInitialWindow, &ConnError{Code: ErrProtocolError, Msg: "invalid MAX_FRAME_SIZE value"}
			}
			s.MaxFrameSize = u.value
		case SettingMaxHeaderListSize:
			s.MaxHeaderListSize = u.value
		default:
			// Unknown settings are ignored per RFC 9113 §6.5.2.
		}
	}
	return prevInitialWindow, nil
}
