// go-ntag21x
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-ntag21x.
//
// go-ntag21x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-ntag21x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-ntag21x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package testing provides test doubles for the codec and the PN532 links:
// a command-level virtual NTAG21x tag and a wire-level PN532 simulator that
// forwards raw InCommunicateThru frames to it.
//
// Protocol reference: PN532 User Manual, section 6.2 "Host controller
// communication protocol" and section 7.3.9 "InCommunicateThru".
package testing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// PN532 command codes handled by the simulator
const (
	cmdGetFirmwareVersion = 0x02
	cmdReadRegister       = 0x06
	cmdWriteRegister      = 0x08
	cmdSAMConfiguration   = 0x14
	cmdRFConfiguration    = 0x32
	cmdInCommunicateThru  = 0x42
)

// PN532 status codes (User Manual §7.1, table 13)
const (
	statusOK           = 0x00
	statusTimeout      = 0x01
	statusCRC          = 0x02
	statusInvalidParam = 0x10
)

// CIU registers used in raw mode
const (
	RegTxMode     = 0x6302
	RegRxMode     = 0x6303
	RegBitFraming = 0x633D

	crcEnable     = 0x80
	txLastBitMask = 0x07
)

// rfItemField is the RFConfiguration item switching the antenna field.
const rfItemField = 0x01

// SimulatorState is the state of the simulated PN532
type SimulatorState struct {
	Registers     map[uint16]byte
	RFFieldOn     bool
	SAMConfigured bool
}

// VirtualPN532 simulates a PN532 at the wire protocol level. It implements
// io.ReadWriter so links can run against it in place of a serial port, and it
// forwards InCommunicateThru payloads to the attached VirtualNTAG.
type VirtualPN532 struct {
	tag                 *VirtualNTAG
	registers           map[uint16]byte
	lastResponse        []byte
	rxBuffer            bytes.Buffer
	txBuffer            bytes.Buffer
	mu                  syncutil.Mutex
	firmware            [4]byte
	rfFieldOn           bool
	samConfigured       bool
	injectChecksumError bool
	injectErrorFrame    bool
	dropNextACK         bool
}

// NewVirtualPN532 creates a simulator with hardware CRC enabled, as after
// power-on, and no tag in the field.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{
		registers: defaultRegisters(),
		// PN532 v1.6
		firmware: [4]byte{0x32, 0x01, 0x06, 0x07},
	}
}

func defaultRegisters() map[uint16]byte {
	return map[uint16]byte{
		RegTxMode:     crcEnable,
		RegRxMode:     crcEnable,
		RegBitFraming: 0x00,
	}
}

// Write implements io.Writer: it receives bytes from the host.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read implements io.Reader: it returns pending bytes for the host.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// SetTag puts tag into the field. A nil tag empties the field.
func (v *VirtualPN532) SetTag(tag *VirtualNTAG) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tag = tag
}

// SetFirmwareVersion configures the reply to GetFirmwareVersion.
func (v *VirtualPN532) SetFirmwareVersion(ic, ver, rev, support byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = [4]byte{ic, ver, rev, support}
}

// InjectChecksumError corrupts the data checksum of the next response.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// InjectErrorFrame answers the next command with an application error frame.
func (v *VirtualPN532) InjectErrorFrame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectErrorFrame = true
}

// DropNextACK skips the ACK frame of the next command.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// GetState returns a snapshot of the simulator state.
func (v *VirtualPN532) GetState() SimulatorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	regs := make(map[uint16]byte, len(v.registers))
	for k, val := range v.registers {
		regs[k] = val
	}
	return SimulatorState{
		RFFieldOn:     v.rfFieldOn,
		SAMConfigured: v.samConfigured,
		Registers:     regs,
	}
}

// HasPendingResponse reports whether bytes wait to be read. The I2C and SPI
// link doubles use it as the ready flag.
func (v *VirtualPN532) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len() > 0
}

// Reset clears buffers, registers and injected faults.
func (v *VirtualPN532) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Reset()
	v.txBuffer.Reset()
	v.lastResponse = nil
	v.registers = defaultRegisters()
	v.rfFieldOn = false
	v.samConfigured = false
	v.injectChecksumError = false
	v.injectErrorFrame = false
	v.dropNextACK = false
}

// processReceivedData consumes complete frames from the receive buffer.
func (v *VirtualPN532) processReceivedData() {
	for {
		data := v.rxBuffer.Bytes()
		if len(data) < len(frame.AckFrame) {
			return
		}

		if bytes.HasPrefix(data, frame.AckFrame) {
			v.rxBuffer.Next(len(frame.AckFrame))
			continue
		}
		if bytes.HasPrefix(data, frame.NackFrame) {
			v.rxBuffer.Next(len(frame.NackFrame))
			if v.lastResponse != nil {
				v.txBuffer.Write(v.lastResponse)
			}
			continue
		}

		// wake-up preamble bytes and padding are skipped here
		start := bytes.Index(data, []byte{frame.StartCode1, frame.StartCode2})
		if start < 0 {
			v.rxBuffer.Reset()
			return
		}
		if start > 0 {
			v.rxBuffer.Next(start)
			data = v.rxBuffer.Bytes()
		}

		frameData, frameLen, err := parseHostFrame(data)
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		if err != nil {
			v.rxBuffer.Next(1)
			continue
		}
		v.rxBuffer.Next(frameLen)
		v.processCommand(frameData)
	}
}

// parseHostFrame validates a normal information frame starting at the start
// code and returns TFI + command + params and the bytes consumed.
func parseHostFrame(data []byte) (frameData []byte, consumed int, err error) {
	if len(data) < 4 {
		return nil, 0, frame.ErrIncomplete
	}
	frameLen := int(data[2])
	if byte(frameLen)+data[3] != 0 {
		return nil, 0, frame.ErrLengthChecksum
	}
	// start code, LEN, LCS, data, DCS, postamble
	total := 2 + 2 + frameLen + 2
	if len(data) < total {
		return nil, 0, frame.ErrIncomplete
	}
	frameData = data[4 : 4+frameLen]
	if frame.Checksum(data[4:4+frameLen+1]) != 0 {
		return nil, 0, frame.ErrDataChecksum
	}
	if frameLen < 2 || frameData[0] != frame.HostToPn532 {
		return nil, 0, fmt.Errorf("%w: not a host frame", frame.ErrUnexpectedResponse)
	}
	return append([]byte(nil), frameData...), total, nil
}

func (v *VirtualPN532) processCommand(frameData []byte) {
	if !v.dropNextACK {
		v.txBuffer.Write(frame.AckFrame)
	}
	v.dropNextACK = false

	if v.injectErrorFrame {
		v.injectErrorFrame = false
		v.sendErrorFrame()
		return
	}

	cmd := frameData[1]
	params := frameData[2:]

	var response []byte
	switch cmd {
	case cmdGetFirmwareVersion:
		response = v.firmware[:]
	case cmdSAMConfiguration:
		if len(params) < 1 {
			v.sendErrorFrame()
			return
		}
		v.samConfigured = true
		response = []byte{}
	case cmdRFConfiguration:
		response = v.handleRFConfiguration(params)
	case cmdReadRegister:
		response = v.handleReadRegister(params)
	case cmdWriteRegister:
		response = v.handleWriteRegister(params)
	case cmdInCommunicateThru:
		response = v.handleInCommunicateThru(params)
	default:
		v.sendErrorFrame()
		return
	}
	v.sendResponse(cmd, response)
}

func (v *VirtualPN532) handleRFConfiguration(params []byte) []byte {
	if len(params) >= 2 && params[0] == rfItemField {
		v.rfFieldOn = params[1]&0x01 != 0
		if !v.rfFieldOn && v.tag != nil {
			// field off resets every tag in range
			_ = v.tag.Deinit()
		}
	}
	return []byte{}
}

func (v *VirtualPN532) handleReadRegister(params []byte) []byte {
	out := make([]byte, 0, len(params)/2)
	for i := 0; i+1 < len(params); i += 2 {
		addr := uint16(params[i])<<8 | uint16(params[i+1])
		out = append(out, v.registers[addr])
	}
	return out
}

func (v *VirtualPN532) handleWriteRegister(params []byte) []byte {
	for i := 0; i+2 < len(params); i += 3 {
		addr := uint16(params[i])<<8 | uint16(params[i+1])
		v.registers[addr] = params[i+2]
	}
	return []byte{}
}

// handleInCommunicateThru sends params to the tag the way the CIU would:
// hardware CRC and TxLastBits follow the register settings.
func (v *VirtualPN532) handleInCommunicateThru(params []byte) []byte {
	if len(params) == 0 {
		return []byte{statusInvalidParam}
	}
	if !v.rfFieldOn || v.tag == nil {
		return []byte{statusTimeout}
	}

	request := append([]byte(nil), params...)
	shortFrame := len(request) == 1 && (request[0] == CmdREQA || request[0] == CmdWUPA)
	lastBits := v.registers[RegBitFraming] & txLastBitMask
	if shortFrame != (lastBits == 7) {
		// a 7-bit REQA sent as a full byte, or a full frame cut to 7 bits
		return []byte{statusTimeout}
	}
	// short frames never carry a CRC
	if !shortFrame && v.registers[RegTxMode]&crcEnable != 0 {
		request = frame.AppendCRCA(request)
	}

	reply, err := v.tag.Exchange(request)
	if err != nil {
		return []byte{statusTimeout}
	}
	if !shortFrame && v.registers[RegRxMode]&crcEnable != 0 && len(reply) > 1 {
		if !frame.CheckCRCA(reply) {
			return []byte{statusCRC}
		}
		reply = reply[:len(reply)-2]
	}
	return append([]byte{statusOK}, reply...)
}

func (v *VirtualPN532) sendResponse(cmd byte, data []byte) {
	resp := frame.BuildResponseFrame(cmd, data)
	if v.injectChecksumError {
		v.injectChecksumError = false
		bad := append([]byte(nil), resp...)
		bad[len(bad)-2] ^= 0xFF
		v.lastResponse = resp
		v.txBuffer.Write(bad)
		return
	}
	v.lastResponse = resp
	v.txBuffer.Write(resp)
}

// sendErrorFrame writes the application level error frame (§6.2.1.5).
func (v *VirtualPN532) sendErrorFrame() {
	errFrame := []byte{frame.Preamble, frame.StartCode1, frame.StartCode2, 0x01, 0xFF, 0x7F, 0x81, frame.Postamble}
	v.lastResponse = errFrame
	v.txBuffer.Write(errFrame)
}
