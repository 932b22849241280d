// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame direction constants - these indicate the direction of data flow
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// Frame size limits
const (
	// MaxFrameDataLength is the largest LEN a normal information frame carries.
	MaxFrameDataLength = 255
	// FrameOverhead is preamble, start code, LEN, LCS, DCS and postamble.
	FrameOverhead = 7
)

// ACK and NACK frames - these are used for flow control
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)

// Frame parsing errors. ErrIncomplete means more bytes are needed; the
// checksum errors mean the host should answer with a NACK.
var (
	ErrFrameTooLarge      = errors.New("frame: payload exceeds normal frame length")
	ErrIncomplete         = errors.New("frame: incomplete frame")
	ErrNoStartCode        = errors.New("frame: start code not found")
	ErrLengthChecksum     = errors.New("frame: length checksum mismatch")
	ErrDataChecksum       = errors.New("frame: data checksum mismatch")
	ErrApplicationError   = errors.New("frame: PN532 application error frame")
	ErrUnexpectedResponse = errors.New("frame: unexpected response")
)

// Checksum computes the checksum for a data buffer
// This is a simple sum of all bytes in the provided data
func Checksum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk += b
	}
	return chk
}

// BuildHostFrame builds a normal information frame carrying cmd and args
// from the host to the PN532.
func BuildHostFrame(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args) // TFI + command + args
	if dataLen > MaxFrameDataLength {
		return nil, ErrFrameTooLarge
	}

	frm := make([]byte, 0, dataLen+FrameOverhead)
	frm = append(frm, Preamble, StartCode1, StartCode2, byte(dataLen), ^byte(dataLen)+1, HostToPn532, cmd)
	frm = append(frm, args...)
	frm = append(frm, ^Checksum(frm[5:])+1, Postamble)
	return frm, nil
}

// IsAck reports whether buf starts with an ACK frame. Leading zero
// bytes are tolerated, the I2C and SPI links can deliver padding first.
func IsAck(buf []byte) bool {
	return bytes.Contains(buf, AckFrame)
}

// IsNack reports whether buf holds a NACK frame.
func IsNack(buf []byte) bool {
	return bytes.Contains(buf, NackFrame)
}

// findStart returns the offset of the LEN byte following the 00 FF start code.
func findStart(buf []byte) int {
	idx := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if idx < 0 {
		return -1
	}
	return idx + 2
}

// FrameLength returns the number of bytes, counted from the start of buf,
// needed to hold the complete frame beginning in buf. It returns
// ErrIncomplete while the header is still missing.
func FrameLength(buf []byte) (int, error) {
	off := findStart(buf)
	if off < 0 || off+1 >= len(buf) {
		return 0, ErrIncomplete
	}
	frameLen := int(buf[off])
	if byte(frameLen)+buf[off+1] != 0 {
		return 0, ErrLengthChecksum
	}
	// LEN LCS data DCS postamble
	return off + 2 + frameLen + 2, nil
}

// ParseResponse extracts the payload of the PN532 reply to cmd from buf.
// The returned slice starts after the response code (cmd+1) and is a copy.
func ParseResponse(buf []byte, cmd byte) ([]byte, error) {
	off := findStart(buf)
	if off < 0 {
		return nil, ErrNoStartCode
	}
	if off+1 >= len(buf) {
		return nil, ErrIncomplete
	}

	frameLen := int(buf[off])
	if byte(frameLen)+buf[off+1] != 0 {
		return nil, ErrLengthChecksum
	}
	// 00 FF 01 FF 7F 81 00
	if frameLen == 0x01 && off+3 < len(buf) && buf[off+2] == 0x7F {
		return nil, ErrApplicationError
	}

	start := off + 2
	end := start + frameLen
	if end+1 > len(buf) {
		return nil, ErrIncomplete
	}
	if Checksum(buf[start:end+1]) != 0 {
		return nil, ErrDataChecksum
	}
	if frameLen < 2 {
		return nil, fmt.Errorf("%w: frame length %d", ErrUnexpectedResponse, frameLen)
	}
	if buf[start] != Pn532ToHost {
		return nil, fmt.Errorf("%w: TFI 0x%02X", ErrUnexpectedResponse, buf[start])
	}
	if buf[start+1] != cmd+1 {
		return nil, fmt.Errorf("%w: response code 0x%02X for command 0x%02X",
			ErrUnexpectedResponse, buf[start+1], cmd)
	}

	data := make([]byte, frameLen-2)
	copy(data, buf[start+2:end])
	return data, nil
}

// BuildResponseFrame builds a PN532-to-host frame answering cmd. Links use
// it in tests to script replies.
func BuildResponseFrame(cmd byte, data []byte) []byte {
	dataLen := 2 + len(data)
	frm := make([]byte, 0, dataLen+FrameOverhead)
	frm = append(frm, Preamble, StartCode1, StartCode2, byte(dataLen), ^byte(dataLen)+1, Pn532ToHost, cmd+1)
	frm = append(frm, data...)
	frm = append(frm, ^Checksum(frm[5:])+1, Postamble)
	return frm
}
