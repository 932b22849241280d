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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestGuessTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{path: "/dev/i2c-1", want: "i2c"},
		{path: "/dev/I2C-0", want: "i2c"},
		{path: "/dev/spidev0.0", want: "spi"},
		{path: "SPI0.1", want: "spi"},
		{path: "/dev/ttyUSB0", want: "uart"},
		{path: "COM3", want: "uart"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, guessTransport(tt.path))
		})
	}
}

func TestPickPort(t *testing.T) {
	t.Parallel()

	builtin := &enumerator.PortDetails{Name: "/dev/ttyS0"}
	generic := &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"}
	bridge := &enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523"}
	named := &enumerator.PortDetails{Name: "COM7", IsUSB: true, VID: "1234", PID: "5678", Product: "PN532 NFC Module"}

	tests := []struct {
		wantErr error
		name    string
		want    string
		ports   []*enumerator.PortDetails
	}{
		{name: "known bridge wins", ports: []*enumerator.PortDetails{builtin, generic, bridge}, want: "/dev/ttyUSB1"},
		{name: "product name wins", ports: []*enumerator.PortDetails{generic, named}, want: "COM7"},
		{name: "first usb port fallback", ports: []*enumerator.PortDetails{builtin, generic}, want: "/dev/ttyACM0"},
		{name: "nil entries skipped", ports: []*enumerator.PortDetails{nil, bridge}, want: "/dev/ttyUSB1"},
		{name: "no usb port", ports: []*enumerator.PortDetails{builtin}, wantErr: errNoSerialPort},
		{name: "no ports", ports: nil, wantErr: errNoSerialPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := pickPort(tt.ports)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenLink_DeviceRequired(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"spi", "i2c"} {
		cfg := defaultConfig()
		cfg.transport = kind
		link, err := openLink(cfg)
		require.ErrorIs(t, err, errUsage)
		assert.Nil(t, link)
	}
}
