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

package ntag21x

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	virt "github.com/ZaparooProject/go-ntag21x/internal/testing"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	s := New(NewMockTransport())

	assert.False(t, s.Initialized())
	assert.Equal(t, StateUninitialized, s.State())
	assert.Equal(t, FamilyUnknown, s.Family())
	assert.Equal(t, UnknownLastPage, s.LastPage())
	assert.Equal(t, VariantUnknown, s.Variant())

	_, err := s.Layout()
	require.ErrorIs(t, err, ErrLastPageUnknown)
}

func TestInit_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tr   Transceiver
		opts []Option
	}{
		{name: "nil transceiver", tr: nil},
		{name: "nil delay", tr: NewMockTransport(), opts: []Option{WithDelay(nil)}},
		{name: "nil logger", tr: NewMockTransport(), opts: []Option{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New(tt.tr, tt.opts...)
			err := s.Init()
			require.ErrorIs(t, err, ErrConfiguration)
			assert.NotErrorIs(t, err, ErrTransport)
			assert.False(t, s.Initialized())
		})
	}
}

func TestInit_TransceiverFailure(t *testing.T) {
	t.Parallel()
	cause := errors.New("port busy")
	mock := NewMockTransport()
	mock.SetInitError(cause)

	s := New(mock, WithLogger(NopLogger()))
	err := s.Init()
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.False(t, s.Initialized())
}

func TestOperationsRequireInit(t *testing.T) {
	t.Parallel()

	ops := map[string]func(s *Session) error{
		"request":      func(s *Session) error { _, err := s.Request(); return err },
		"wake-up":      func(s *Session) error { _, err := s.WakeUp(); return err },
		"halt":         func(s *Session) error { return s.Halt() },
		"anticoll":     func(s *Session) error { _, err := s.Anticollision(CascadeLevel1); return err },
		"select":       func(s *Session) error { return s.Select(CascadeLevel1, [4]byte{}) },
		"get version":  func(s *Session) error { _, err := s.GetVersion(); return err },
		"read":         func(s *Session) error { _, err := s.ReadPage(4); return err },
		"fast read":    func(s *Session) error { _, err := s.FastRead(4, 5, make([]byte, 8)); return err },
		"write":        func(s *Session) error { return s.WritePage(4, [4]byte{}) },
		"comp write":   func(s *Session) error { return s.CompatibilityWritePage(4, [4]byte{}) },
		"counter":      func(s *Session) error { _, err := s.ReadCounter(); return err },
		"signature":    func(s *Session) error { _, err := s.ReadSignature(); return err },
		"auth":         func(s *Session) error { return s.Authenticate([4]byte{}, [2]byte{}) },
		"serial":       func(s *Session) error { _, err := s.SerialNumber(); return err },
		"cc":           func(s *Session) error { _, err := s.CapabilityContainer(); return err },
		"password":     func(s *Session) error { return s.SetPassword([4]byte{}) },
		"mirror":       func(s *Session) error { return s.SetMirror(MirrorUID) },
		"static lock":  func(s *Session) error { _, err := s.StaticLock(); return err },
		"dynamic lock": func(s *Session) error { _, err := s.DynamicLock(); return err },
		"transceive":   func(s *Session) error { _, err := s.Transceive([]byte{0x26}, 2); return err },
		"search":       func(s *Session) error { _, err := s.Search(0); return err },
		"deinit":       func(s *Session) error { return s.Deinit() },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockTransport()
			s := New(mock, WithLogger(NopLogger()))
			err := op(s)
			require.ErrorIs(t, err, ErrNotInitialized)
			assert.Zero(t, mock.TotalCalls(), "no exchange before Init")
		})
	}
}

func TestDeinit(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	s, _ := newTestSession(t, mock)
	assert.True(t, mock.IsConnected())
	assert.Equal(t, StateInitialized, s.State())

	require.NoError(t, s.Deinit())
	assert.False(t, s.Initialized())
	assert.Equal(t, StateUninitialized, s.State())
	assert.False(t, mock.IsConnected())

	_, err := s.Request()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, s.Deinit(), ErrNotInitialized)
}

func TestInit_ResetsResolvedState(t *testing.T) {
	t.Parallel()
	tag := virt.NewVirtualNTAG215(nil)
	s := selectedSession(t, tag)
	assert.Equal(t, uint8(0x86), s.LastPage())
	assert.Equal(t, FamilyNTAG21x, s.Family())

	require.NoError(t, s.Deinit())
	require.NoError(t, s.Init())
	assert.Equal(t, UnknownLastPage, s.LastPage())
	assert.Equal(t, FamilyUnknown, s.Family())
}

func TestSession_StateProgression(t *testing.T) {
	t.Parallel()
	tag := virt.NewVirtualNTAG213(nil)
	s, _ := newTestSession(t, tag)

	_, err := s.Request()
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())

	cl1, err := s.Anticollision(CascadeLevel1)
	require.NoError(t, err)
	require.NoError(t, s.Select(CascadeLevel1, cl1))
	assert.Equal(t, StateSelectedCL1, s.State())

	cl2, err := s.Anticollision(CascadeLevel2)
	require.NoError(t, err)
	require.NoError(t, s.Select(CascadeLevel2, cl2))
	assert.Equal(t, StateSelected, s.State())

	require.NoError(t, s.Authenticate([4]byte{0xFF, 0xFF, 0xFF, 0xFF}, [2]byte{}))
	assert.Equal(t, StateAuthenticated, s.State())

	require.NoError(t, s.Halt())
	assert.Equal(t, StateAuthenticated, s.State(), "halt does not change the tracked state")
}

func TestSession_Layout(t *testing.T) {
	t.Parallel()
	s := selectedSession(t, virt.NewVirtualNTAG216(nil))

	layout, err := s.Layout()
	require.NoError(t, err)
	assert.Equal(t, LayoutFor(0xE6), layout)
	assert.Equal(t, VariantNTAG216, s.Variant())
}

func TestStateAndFamilyStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "selected (CL1)", StateSelectedCL1.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "NTAG213/5/6", FamilyNTAG21x.String())
	assert.Equal(t, "unknown", FamilyUnknown.String())
}

func TestWithSearchDelay(t *testing.T) {
	t.Parallel()
	s := New(NewMockTransport(), WithSearchDelay(5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, s.searchDelay)
}
