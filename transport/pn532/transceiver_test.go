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
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	virt "github.com/ZaparooProject/go-ntag21x/internal/testing"
)

func newSimulated(t *testing.T, tag *virt.VirtualNTAG) (*Transceiver, *virt.SimulatorLink) {
	t.Helper()
	sim := virt.NewVirtualPN532()
	if tag != nil {
		sim.SetTag(tag)
	}
	link := virt.NewSimulatorLink(sim)
	return NewTransceiver(link, WithLogger(ntag21x.NopLogger())), link
}

func newSession(t *testing.T, tr ntag21x.Transceiver) *ntag21x.Session {
	t.Helper()
	s := ntag21x.New(tr, ntag21x.WithLogger(ntag21x.NopLogger()), ntag21x.WithDelay(func(time.Duration) {}))
	require.NoError(t, s.Init())
	return s
}

func TestTransceiver_Init(t *testing.T) {
	t.Parallel()

	tr, link := newSimulated(t, nil)
	require.NoError(t, tr.Init())

	state := link.Simulator().GetState()
	assert.True(t, state.SAMConfigured)
	assert.True(t, state.RFFieldOn)
	assert.Zero(t, state.Registers[virt.RegTxMode]&crcEnable, "TX CRC must be off")
	assert.Zero(t, state.Registers[virt.RegRxMode]&crcEnable, "RX CRC must be off")

	assert.Equal(t, Firmware{IC: 0x32, Version: 0x01, Revision: 0x06, Support: 0x07}, tr.Firmware())
	assert.Equal(t, 1, link.CommandCount(cmdSAMConfiguration))
	assert.Equal(t, 1, link.CommandCount(cmdWriteRegister))
}

func TestTransceiver_UnsupportedChip(t *testing.T) {
	t.Parallel()

	tr, link := newSimulated(t, nil)
	link.Simulator().SetFirmwareVersion(0x31, 0x01, 0x00, 0x00)

	err := tr.Init()
	require.ErrorIs(t, err, ErrUnsupportedChip)
	assert.Contains(t, err.Error(), "0x31")
	assert.Equal(t, 0, link.CommandCount(cmdSAMConfiguration))
}

func TestTransceiver_SearchReadWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		create  func([]byte) *virt.VirtualNTAG
		name    string
		variant ntag21x.Variant
	}{
		{name: "NTAG213", create: virt.NewVirtualNTAG213, variant: ntag21x.VariantNTAG213},
		{name: "NTAG215", create: virt.NewVirtualNTAG215, variant: ntag21x.VariantNTAG215},
		{name: "NTAG216", create: virt.NewVirtualNTAG216, variant: ntag21x.VariantNTAG216},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tag := tt.create(nil)
			tr, _ := newSimulated(t, tag)
			s := newSession(t, tr)

			found, err := s.Search(0)
			require.NoError(t, err)
			assert.Equal(t, tt.variant, found.Variant)
			assert.Equal(t, tag.UID(), found.UID[:])

			data := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
			require.NoError(t, s.WritePage(5, data))
			got, err := s.ReadPage(5)
			require.NoError(t, err)
			assert.Equal(t, data, got)
			assert.Equal(t, data, tag.Page(5))
		})
	}
}

func TestTransceiver_JitteryLink(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	tag := virt.NewVirtualNTAG215(nil)
	sim.SetTag(tag)
	tr := NewTransceiver(virt.NewJitterySimulatorLink(sim, virt.DefaultJitterConfig()),
		WithLogger(ntag21x.NopLogger()))
	s := newSession(t, tr)

	_, err := s.Search(0)
	require.NoError(t, err)

	buf := make([]byte, ntag21x.MaxFastReadPages*ntag21x.PageSize)
	n, err := s.FastRead(4, 4+ntag21x.MaxFastReadPages-1, buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
}

func TestTransceiver_BitFramingIsCached(t *testing.T) {
	t.Parallel()

	tr, link := newSimulated(t, virt.NewVirtualNTAG213(nil))
	s := newSession(t, tr)
	assert.Equal(t, 1, link.CommandCount(cmdWriteRegister), "CIU modes only")

	_, err := s.Search(0)
	require.NoError(t, err)
	// 7 bits for REQA, back to 0 for the anticollision
	assert.Equal(t, 3, link.CommandCount(cmdWriteRegister))

	_, err = s.ReadPage(4)
	require.NoError(t, err)
	_, err = s.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, link.CommandCount(cmdWriteRegister))
	assert.Equal(t, byte(0), link.Simulator().GetState().Registers[virt.RegBitFraming])
}

func TestTransceiver_NoTag(t *testing.T) {
	t.Parallel()

	tr, _ := newSimulated(t, nil)
	s := newSession(t, tr)

	_, err := s.Search(0)
	require.ErrorIs(t, err, ntag21x.ErrSearchTimeout)
	require.ErrorIs(t, err, ntag21x.ErrTransport)
	assert.True(t, ntag21x.IsTransient(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.Timeout())
}

func TestTransceiver_Transceive(t *testing.T) {
	t.Parallel()

	tag := virt.NewVirtualNTAG213(nil)
	tag.SetPage(4, [4]byte{0x01, 0x02, 0x03, 0x04})
	tr, _ := newSimulated(t, tag)
	s := newSession(t, tr)
	_, err := s.Search(0)
	require.NoError(t, err)

	// the hardware CRC is off, the caller sees the tag's CRC_A
	resp, err := tr.Transceive(frame.AppendCRCA([]byte{0x30, 0x04}), 18)
	require.NoError(t, err)
	require.Len(t, resp, 18)
	assert.True(t, frame.CheckCRCA(resp))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, resp[:4])

	resp, err = tr.Transceive(frame.AppendCRCA([]byte{0x30, 0x04}), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, resp)

	_, err = tr.Transceive(nil, 4)
	require.ErrorIs(t, err, ntag21x.ErrInvalidArgument)
}

func TestTransceiver_Deinit(t *testing.T) {
	t.Parallel()

	tr, link := newSimulated(t, virt.NewVirtualNTAG213(nil))
	require.NoError(t, tr.Init())
	require.NoError(t, tr.Deinit())
	assert.False(t, link.Simulator().GetState().RFFieldOn)

	_, err := tr.Transceive([]byte{0x26}, 2)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.True(t, ntag21x.IsFatal(err))

	var te *ntag21x.TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Retryable)
}

func TestTransceiver_ClosedLinkInit(t *testing.T) {
	t.Parallel()

	tr, link := newSimulated(t, nil)
	require.NoError(t, link.Close())

	err := tr.Init()
	require.Error(t, err)
	assert.True(t, ntag21x.IsFatal(err))
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		status  byte
		timeout bool
	}{
		{name: "timeout", status: 0x01, want: "pn532: status 0x01 (timeout)", timeout: true},
		{name: "crc", status: 0x02, want: "pn532: status 0x02 (CRC error)"},
		{name: "unknown", status: 0x3F, want: "pn532: status 0x3F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := &StatusError{Status: tt.status}
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.timeout, err.Timeout())
		})
	}
}

func TestFirmwareString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "PN532 v1.6", Firmware{IC: 0x32, Version: 1, Revision: 6}.String())
}
