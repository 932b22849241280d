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

package pn532

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// DefaultTimeout bounds one PN532 command, ACK and reply included.
const DefaultTimeout = time.Second

// CIU registers (User Manual §8.6.23)
const (
	regTxMode     = 0x6302
	regRxMode     = 0x6303
	regBitFraming = 0x633D

	crcEnable = 0x80
)

// RFConfiguration items
const (
	rfItemField      = 0x01
	rfItemTimings    = 0x02
	rfItemMaxRetries = 0x05
)

// pn532IC is the IC byte GetFirmwareVersion reports for a PN532.
const pn532IC = 0x32

// tag short frame commands sent with 7 bits
const (
	tagREQA = 0x26
	tagWUPA = 0x52
)

// statusTimeout is the InCommunicateThru status when the tag did not answer.
const statusTimeout = 0x01

var statusNames = map[byte]string{
	0x01: "timeout",
	0x02: "CRC error",
	0x03: "parity error",
	0x04: "wrong bit count",
	0x05: "framing error",
	0x06: "abnormal bit collision",
	0x07: "buffer too small",
	0x09: "RF buffer overflow",
	0x0A: "RF field not switched on",
	0x0B: "RF protocol error",
	0x0D: "overheating",
	0x0E: "internal buffer overflow",
	0x10: "invalid parameter",
	0x27: "command not acceptable",
}

// StatusError is a non-zero status byte of an InCommunicateThru reply.
type StatusError struct {
	Status byte
}

func (e *StatusError) Error() string {
	if name, ok := statusNames[e.Status]; ok {
		return fmt.Sprintf("pn532: status 0x%02X (%s)", e.Status, name)
	}
	return fmt.Sprintf("pn532: status 0x%02X", e.Status)
}

// Timeout reports whether the tag did not answer in time.
func (e *StatusError) Timeout() bool {
	return e.Status == statusTimeout
}

// Firmware is the GetFirmwareVersion answer.
type Firmware struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (f Firmware) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// Option configures a Transceiver
type Option func(*Transceiver)

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transceiver) {
		t.timeout = d
	}
}

// WithLogger sets the sink for link diagnostics.
func WithLogger(logger ntag21x.Logger) Option {
	return func(t *Transceiver) {
		t.logger = logger
	}
}

// Transceiver implements ntag21x.Transceiver on a PN532 in raw mode.
type Transceiver struct {
	link     Link
	logger   ntag21x.Logger
	name     string
	timeout  time.Duration
	firmware Firmware
	mu       syncutil.Mutex
	// bitFraming caches CIU_BitFraming.TxLastBits, -1 when unknown
	bitFraming int
}

// NewTransceiver creates a Transceiver talking over link. Nothing is sent
// before Init.
func NewTransceiver(link Link, opts ...Option) *Transceiver {
	t := &Transceiver{
		link:       link,
		logger:     ntag21x.DefaultLogger(),
		timeout:    DefaultTimeout,
		bitFraming: -1,
	}
	if s, ok := link.(fmt.Stringer); ok {
		t.name = s.String()
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init wakes the PN532, checks it is one, configures the SAM for normal
// mode, limits retries, switches the field on and disables the hardware CRC.
func (t *Transceiver) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bitFraming = -1

	fw, err := t.send("get firmware version", cmdGetFirmwareVersion, nil)
	if err != nil {
		return err
	}
	if len(fw) < 4 {
		return ntag21x.NewTransportError("get firmware version", t.name,
			fmt.Errorf("reply too short: % X", fw), false)
	}
	if fw[0] != pn532IC {
		return fmt.Errorf("%w: IC 0x%02X", ErrUnsupportedChip, fw[0])
	}
	t.firmware = Firmware{IC: fw[0], Version: fw[1], Revision: fw[2], Support: fw[3]}
	t.logger.Debugf("pn532: %s on %s", t.firmware, t.name)

	steps := []struct {
		op   string
		cmd  byte
		args []byte
	}{
		// normal mode, 1 s virtual card timeout, IRQ on
		{op: "SAM configuration", cmd: cmdSAMConfiguration, args: []byte{0x01, 0x14, 0x01}},
		// ATR_RES 102.4 ms, communication timeout 51.2 ms
		{op: "RF timings", cmd: cmdRFConfiguration, args: []byte{rfItemTimings, 0x00, 0x0B, 0x0A}},
		// no ATR retries, one PSL and one activation attempt
		{op: "RF retries", cmd: cmdRFConfiguration, args: []byte{rfItemMaxRetries, 0x00, 0x01, 0x01}},
		{op: "RF field on", cmd: cmdRFConfiguration, args: []byte{rfItemField, 0x01}},
	}
	for _, step := range steps {
		if _, err := t.send(step.op, step.cmd, step.args); err != nil {
			return err
		}
	}

	return t.disableHardwareCRC()
}

func (t *Transceiver) disableHardwareCRC() error {
	modes, err := t.send("read CIU modes", cmdReadRegister, []byte{
		byte(regTxMode >> 8), byte(regTxMode & 0xFF),
		byte(regRxMode >> 8), byte(regRxMode & 0xFF),
	})
	if err != nil {
		return err
	}
	if len(modes) < 2 {
		return ntag21x.NewTransportError("read CIU modes", t.name,
			fmt.Errorf("reply too short: % X", modes), false)
	}

	_, err = t.send("write CIU modes", cmdWriteRegister, []byte{
		byte(regTxMode >> 8), byte(regTxMode & 0xFF), modes[0] &^ crcEnable,
		byte(regRxMode >> 8), byte(regRxMode & 0xFF), modes[1] &^ crcEnable,
	})
	return err
}

// Deinit switches the field off and closes the link. The link is closed
// even when the field cannot be switched off.
func (t *Transceiver) Deinit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bitFraming = -1
	_, fieldErr := t.send("RF field off", cmdRFConfiguration, []byte{rfItemField, 0x00})

	var closeErr error
	if err := t.link.Close(); err != nil {
		closeErr = ntag21x.NewTransportError("close", t.name, err, false)
	}
	return errors.Join(fieldErr, closeErr)
}

// Transceive sends request to the tag through InCommunicateThru and returns
// at most capacity bytes of its reply.
func (t *Transceiver) Transceive(request []byte, capacity int) ([]byte, error) {
	if len(request) == 0 {
		return nil, fmt.Errorf("%w: empty request", ntag21x.ErrInvalidArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lastBits := 0
	if len(request) == 1 && (request[0] == tagREQA || request[0] == tagWUPA) {
		lastBits = 7
	}
	if err := t.setTxLastBits(lastBits); err != nil {
		return nil, err
	}

	resp, err := t.send("transceive", cmdInCommunicateThru, request)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, ntag21x.NewTransportError("transceive", t.name, errors.New("missing status byte"), true)
	}
	if status := resp[0] & 0x3F; status != 0 {
		return nil, ntag21x.NewTransportError("transceive", t.name, &StatusError{Status: status}, true)
	}

	data := resp[1:]
	if len(data) > capacity {
		data = data[:capacity]
	}
	return data, nil
}

// setTxLastBits writes CIU_BitFraming when the cached value differs.
func (t *Transceiver) setTxLastBits(bits int) error {
	if t.bitFraming == bits {
		return nil
	}
	_, err := t.send("set bit framing", cmdWriteRegister, []byte{
		byte(regBitFraming >> 8), byte(regBitFraming & 0xFF), byte(bits),
	})
	if err != nil {
		t.bitFraming = -1
		return err
	}
	t.bitFraming = bits
	return nil
}

func (t *Transceiver) send(op string, cmd byte, args []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	resp, err := t.link.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, ntag21x.NewTransportError(op, t.name, err, !ntag21x.IsFatal(err))
	}
	return resp, nil
}

// Firmware returns the version read by the last successful Init.
func (t *Transceiver) Firmware() Firmware {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firmware
}

func (t *Transceiver) String() string {
	if t.name == "" {
		return "pn532"
	}
	return "pn532 on " + t.name
}

var _ ntag21x.Transceiver = (*Transceiver)(nil)
