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
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI operation prefixes, sent LSB first like everything on this bus
const (
	spiStatRead  = 0x02
	spiDataWrite = 0x01
	spiDataRead  = 0x03
	spiReady     = 0x01
)

const (
	spiFreq = 1 * physic.MegaHertz
	// CPOL=0, CPHA=0. LSB first is handled by bit reversal.
	spiMode = spi.Mode0
)

// SPI is a Link over an SPI port.
type SPI struct {
	packetLink
}

// NewSPI opens the SPI port, e.g. "/dev/spidev0.0" or "SPI0.0", and wakes
// the PN532.
func NewSPI(portName string) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}

	open := func() (packetIO, io.Closer, error) {
		port, err := spireg.Open(portName)
		if err != nil {
			return nil, nil, fmt.Errorf("open SPI port %s: %w", portName, err)
		}
		conn, err := port.Connect(spiFreq, spiMode, 8)
		if err != nil {
			_ = port.Close()
			return nil, nil, fmt.Errorf("connect SPI %s: %w", portName, err)
		}
		wakeSPI(conn)
		return &spiConn{conn: conn}, port, nil
	}

	dev, closer, err := open()
	if err != nil {
		return nil, err
	}
	return &SPI{packetLink{dev: dev, closer: closer, open: open, name: portName}}, nil
}

// newSPI wraps an already connected bus, used by tests.
func newSPI(name string, conn txConn) *SPI {
	return &SPI{packetLink{dev: &spiConn{conn: conn}, name: name}}
}

// wakeSPI holds chip select low for a dummy byte.
func wakeSPI(conn txConn) {
	time.Sleep(time.Millisecond)
	_ = conn.Tx([]byte{0x00}, nil)
	time.Sleep(time.Millisecond)
}

// spiConn implements packetIO. The PN532 shifts LSB first while SPI
// controllers shift MSB first, so every byte is mirrored on the way.
type spiConn struct {
	conn txConn
}

func (c *spiConn) writeFrame(data []byte) error {
	w := make([]byte, 1+len(data))
	w[0] = reverseBit(spiDataWrite)
	copy(w[1:], reverseBytes(data))
	if err := c.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("SPI write: %w", err)
	}
	return nil
}

func (c *spiConn) ready() (bool, error) {
	w := []byte{reverseBit(spiStatRead), 0x00}
	r := make([]byte, len(w))
	if err := c.conn.Tx(w, r); err != nil {
		return false, fmt.Errorf("SPI status read: %w", err)
	}
	return reverseBit(r[1]) == spiReady, nil
}

func (c *spiConn) read(n int) ([]byte, error) {
	w := make([]byte, 1+n)
	w[0] = reverseBit(spiDataRead)
	r := make([]byte, len(w))
	if err := c.conn.Tx(w, r); err != nil {
		return nil, fmt.Errorf("SPI data read: %w", err)
	}
	return reverseBytes(r[1:]), nil
}

// reverseBit mirrors the bits of b.
func reverseBit(b byte) byte {
	var result byte
	for range 8 {
		result <<= 1
		result |= b & 1
		b >>= 1
	}
	return result
}

func reverseBytes(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = reverseBit(b)
	}
	return out
}
