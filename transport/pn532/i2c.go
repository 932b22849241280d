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
	"fmt"
	"io"
	"strings"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address. The datasheet gives 0x48, the 8-bit write
	// address including the R/W bit.
	i2cAddr = 0x24

	i2cReady   = 0x01
	i2cMaxFreq = 400 * physic.KiloHertz
)

// I2C is a Link over an I2C bus.
type I2C struct {
	packetLink
}

// NewI2C opens the I2C bus, e.g. "/dev/i2c-1". A ":0x24" address suffix as
// produced by device listings is accepted and ignored.
func NewI2C(busName string) (*I2C, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}

	path, _, _ := strings.Cut(busName, ":")
	open := func() (packetIO, io.Closer, error) {
		bus, err := i2creg.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open I2C bus %s: %w", path, err)
		}
		// buses that cannot change speed keep their default
		_ = bus.SetSpeed(i2cMaxFreq)
		return &i2cConn{dev: &i2c.Dev{Addr: i2cAddr, Bus: bus}}, bus, nil
	}

	dev, closer, err := open()
	if err != nil {
		return nil, err
	}
	return &I2C{packetLink{dev: dev, closer: closer, open: open, name: busName}}, nil
}

// newI2C wraps an already opened device, used by tests.
func newI2C(name string, dev txConn) *I2C {
	return &I2C{packetLink{dev: &i2cConn{dev: dev}, name: name}}
}

// i2cConn implements packetIO. Every read transaction starts with the
// ready status byte, followed by the pending data.
type i2cConn struct {
	dev txConn
}

func (c *i2cConn) writeFrame(data []byte) error {
	if err := c.dev.Tx(data, nil); err != nil {
		return fmt.Errorf("I2C write: %w", err)
	}
	return nil
}

func (c *i2cConn) ready() (bool, error) {
	status := make([]byte, 1)
	if err := c.dev.Tx(nil, status); err != nil {
		return false, fmt.Errorf("I2C status read: %w", err)
	}
	return status[0]&i2cReady != 0, nil
}

func (c *i2cConn) read(n int) ([]byte, error) {
	buf := make([]byte, 1+n)
	if err := c.dev.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("I2C read: %w", err)
	}
	if buf[0]&i2cReady == 0 {
		return nil, ErrNotReady
	}
	return buf[1:], nil
}
