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
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	virt "github.com/ZaparooProject/go-ntag21x/internal/testing"
)

// spiBus plays the PN532 side of the SPI bus: bytes arrive LSB first and
// the first byte of every transaction selects the operation.
type spiBus struct {
	sim *virt.VirtualPN532
	txs int
}

func (b *spiBus) Tx(w, r []byte) error {
	b.txs++
	if len(w) == 0 {
		return nil
	}
	switch reverseBit(w[0]) {
	case spiDataWrite:
		_, _ = b.sim.Write(reverseBytes(w[1:]))
	case spiStatRead:
		if b.sim.HasPendingResponse() {
			r[1] = reverseBit(spiReady)
		} else {
			r[1] = 0
		}
	case spiDataRead:
		buf := make([]byte, len(r)-1)
		_, _ = b.sim.Read(buf)
		copy(r[1:], reverseBytes(buf))
	}
	return nil
}

// i2cBus plays the PN532 side of the I2C bus: every read starts with the
// ready byte and only consumes data when the device was ready.
type i2cBus struct {
	sim *virt.VirtualPN532
}

func (b *i2cBus) Tx(w, r []byte) error {
	if len(w) > 0 {
		_, _ = b.sim.Write(w)
	}
	if len(r) == 0 {
		return nil
	}
	clear(r)
	if !b.sim.HasPendingResponse() {
		return nil
	}
	r[0] = i2cReady
	if len(r) > 1 {
		_, _ = b.sim.Read(r[1:])
	}
	return nil
}

// deadBus never becomes ready.
type deadBus struct{}

func (deadBus) Tx(_, r []byte) error {
	clear(r)
	return nil
}

type packetCase struct {
	link func(sim *virt.VirtualPN532) Link
	name string
}

var packetCases = []packetCase{
	{name: "SPI", link: func(sim *virt.VirtualPN532) Link { return newSPI("spi0", &spiBus{sim: sim}) }},
	{name: "I2C", link: func(sim *virt.VirtualPN532) Link { return newI2C("i2c-1", &i2cBus{sim: sim}) }},
}

func TestPacketLinks_SendCommand(t *testing.T) {
	t.Parallel()

	for _, tc := range packetCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sim := virt.NewVirtualPN532()
			link := tc.link(sim)

			data, err := link.SendCommand(context.Background(), cmdGetFirmwareVersion, nil)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x32, 0x01, 0x06, 0x07}, data)
			assert.False(t, sim.HasPendingResponse(), "the whole reply is consumed")

			data, err = link.SendCommand(context.Background(), cmdReadRegister, []byte{0x63, 0x02, 0x63, 0x03})
			require.NoError(t, err)
			assert.Equal(t, []byte{0x80, 0x80}, data)
		})
	}
}

func TestPacketLinks_Session(t *testing.T) {
	t.Parallel()

	for _, tc := range packetCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sim := virt.NewVirtualPN532()
			tag := virt.NewVirtualNTAG215(nil)
			sim.SetTag(tag)
			s := newSession(t, NewTransceiver(tc.link(sim), WithLogger(ntag21x.NopLogger())))

			found, err := s.Search(0)
			require.NoError(t, err)
			assert.Equal(t, ntag21x.VariantNTAG215, found.Variant)

			require.NoError(t, s.WritePage(4, [4]byte{0xCA, 0xFE, 0xBA, 0xBE}))
			got, err := s.ReadPage(4)
			require.NoError(t, err)
			assert.Equal(t, [4]byte{0xCA, 0xFE, 0xBA, 0xBE}, got)

			sig, err := s.ReadSignature()
			require.NoError(t, err)
			assert.Equal(t, tag.Signature(), sig)
		})
	}
}

func TestPacketLinks_Faults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		inject  func(sim *virt.VirtualPN532)
		wantErr error
		name    string
	}{
		{name: "checksum error is recovered", inject: (*virt.VirtualPN532).InjectChecksumError},
		{name: "error frame", inject: (*virt.VirtualPN532).InjectErrorFrame, wantErr: frame.ErrApplicationError},
		{name: "missing ACK", inject: (*virt.VirtualPN532).DropNextACK, wantErr: ErrNoACK},
	}

	for _, tc := range packetCases {
		for _, tt := range tests {
			t.Run(tc.name+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				sim := virt.NewVirtualPN532()
				link := tc.link(sim)
				tt.inject(sim)

				_, err := link.SendCommand(context.Background(), cmdGetFirmwareVersion, nil)
				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				} else {
					require.NoError(t, err)
				}

				// stale bytes of the failed command are flushed
				data, err := link.SendCommand(context.Background(), cmdGetFirmwareVersion, nil)
				require.NoError(t, err)
				assert.Equal(t, []byte{0x32, 0x01, 0x06, 0x07}, data)
			})
		}
	}
}

func TestPacketLinks_NotReady(t *testing.T) {
	t.Parallel()

	links := map[string]Link{
		"SPI": newSPI("spi0", deadBus{}),
		"I2C": newI2C("i2c-1", deadBus{}),
	}
	for name, link := range links {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := link.SendCommand(ctx, cmdGetFirmwareVersion, nil)
			require.ErrorIs(t, err, ErrNotReady)
			require.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestPacketLinks_Close(t *testing.T) {
	t.Parallel()

	for _, tc := range packetCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			link := tc.link(virt.NewVirtualPN532())
			require.NoError(t, link.Close())

			_, err := link.SendCommand(context.Background(), cmdGetFirmwareVersion, nil)
			require.ErrorIs(t, err, io.ErrClosedPipe)
		})
	}
}

func TestSPI_StatusPollDoesNotConsume(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	bus := &spiBus{sim: sim}
	dev := &spiConn{conn: bus}

	ok, err := dev.ready()
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = sim.Write([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00})
	for range 3 {
		ok, err = dev.ready()
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ack, err := dev.read(6)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, ack)
	assert.Equal(t, 5, bus.txs)
}

func TestReverseBit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want byte
	}{
		{in: 0x00, want: 0x00},
		{in: 0x01, want: 0x80},
		{in: 0x02, want: 0x40},
		{in: 0x03, want: 0xC0},
		{in: 0xD4, want: 0x2B},
		{in: 0xFF, want: 0xFF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reverseBit(tt.in), "0x%02X", tt.in)
		assert.Equal(t, tt.in, reverseBit(reverseBit(tt.in)))
	}
	assert.Equal(t, []byte{0x80, 0x2B}, reverseBytes([]byte{0x01, 0xD4}))
}
