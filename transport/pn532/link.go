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

// Package pn532 drives an NXP PN532 NFC front end in raw mode so the ntag21x
// codec can talk to the tag byte for byte.
//
// The PN532 only forwards frames here: hardware CRC is switched off and every
// tag command travels through InCommunicateThru. The codec computes and checks
// CRC_A itself.
//
// Protocol reference: PN532 User Manual, section 6.2 "Host controller
// communication protocol", section 7.3.9 "InCommunicateThru" and the CIU
// register map in section 8.6.
package pn532

import (
	"context"
	"errors"
	"time"
)

// PN532 command codes
const (
	cmdGetFirmwareVersion = 0x02
	cmdReadRegister       = 0x06
	cmdWriteRegister      = 0x08
	cmdSAMConfiguration   = 0x14
	cmdRFConfiguration    = 0x32
	cmdInCommunicateThru  = 0x42
)

// Link errors
var (
	ErrNoACK           = errors.New("pn532: no ACK received")
	ErrNACKReceived    = errors.New("pn532: NACK received")
	ErrNotReady        = errors.New("pn532: device not ready")
	ErrTimeout         = errors.New("pn532: response timeout")
	ErrUnsupportedChip = errors.New("pn532: unsupported IC")
)

// Link carries PN532 host frames over a physical interface. SendCommand
// sends cmd with args, handles the ACK handshake and returns the payload of
// the reply following the response code.
type Link interface {
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)
	Close() error
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors pass through
	case <-timer.C:
		return nil
	}
}
