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
	"fmt"
)

// Mirror selects which ASCII mirror the tag applies to its user memory
// (CFG0 byte 0, bits 7-6).
type Mirror uint8

const (
	MirrorNone Mirror = iota
	MirrorUID
	MirrorCounter
	MirrorUIDCounter
)

func (m Mirror) String() string {
	switch m {
	case MirrorNone:
		return "none"
	case MirrorUID:
		return "uid"
	case MirrorCounter:
		return "counter"
	case MirrorUIDCounter:
		return "uid+counter"
	default:
		return fmt.Sprintf("Mirror(%d)", uint8(m))
	}
}

// MirrorByte is the byte position within the mirror page where the mirror
// starts (CFG0 byte 0, bits 5-4).
type MirrorByte uint8

const (
	MirrorByte0 MirrorByte = iota
	MirrorByte1
	MirrorByte2
	MirrorByte3
)

// ModulationMode selects the load modulation strength (CFG0 byte 0, bit 2).
type ModulationMode uint8

const (
	ModulationNormal ModulationMode = iota
	ModulationStrong
)

func (m ModulationMode) String() string {
	if m == ModulationStrong {
		return "strong"
	}
	return "normal"
}

// Access is a flag of the ACCESS byte (CFG1 byte 0). The value is its bit
// position.
type Access uint8

const (
	// AccessNFCCounterPasswordProtection protects the NFC counter with the password.
	AccessNFCCounterPasswordProtection Access = 3
	// AccessNFCCounter enables the NFC counter.
	AccessNFCCounter Access = 4
	// AccessUserConfProtection permanently locks the configuration pages.
	AccessUserConfProtection Access = 6
	// AccessReadProtection extends password protection to reads.
	AccessReadProtection Access = 7
)

func (a Access) String() string {
	switch a {
	case AccessNFCCounterPasswordProtection:
		return "nfc-counter-password-protection"
	case AccessNFCCounter:
		return "nfc-counter"
	case AccessUserConfProtection:
		return "user-conf-protection"
	case AccessReadProtection:
		return "read-protection"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

func (a Access) valid() bool {
	switch a {
	case AccessNFCCounterPasswordProtection, AccessNFCCounter,
		AccessUserConfProtection, AccessReadProtection:
		return true
	default:
		return false
	}
}

// MaxAuthLimit is the largest AUTHLIM value; 0 disables the limit.
const MaxAuthLimit = 7

// configField describes a bitfield inside one of the configuration pages.
type configField struct {
	name      string
	offset    uint8 // from the last page
	byteIndex int
	mask      byte // unshifted
	shift     uint
}

var (
	fieldMirror       = configField{name: "mirror", offset: offsetCFG0, byteIndex: 0, mask: 0x03, shift: 6}
	fieldMirrorByte   = configField{name: "mirror byte", offset: offsetCFG0, byteIndex: 0, mask: 0x03, shift: 4}
	fieldModulation   = configField{name: "modulation mode", offset: offsetCFG0, byteIndex: 0, mask: 0x01, shift: 2}
	fieldMirrorPage   = configField{name: "mirror page", offset: offsetCFG0, byteIndex: 2, mask: 0xFF, shift: 0}
	fieldProtectStart = configField{name: "protect start page", offset: offsetCFG0, byteIndex: 3, mask: 0xFF, shift: 0}
	fieldAuthLimit    = configField{name: "authentication limit", offset: offsetCFG1, byteIndex: 0, mask: 0x07, shift: 0}
)

func accessField(a Access) configField {
	return configField{name: "access " + a.String(), offset: offsetCFG1, byteIndex: 0, mask: 0x01, shift: uint(a)}
}

// updateConfig reads the configuration page holding f, replaces the bits
// of f with value and writes the whole page back. The other bits are
// written back as read.
func (s *Session) updateConfig(f configField, value byte) error {
	command := "set " + f.name
	page, err := s.relativePage(command, f.offset)
	if err != nil {
		return err
	}
	conf, err := s.readConfigPage(command, page)
	if err != nil {
		return err
	}

	conf[f.byteIndex] &^= f.mask << f.shift
	conf[f.byteIndex] |= (value & f.mask) << f.shift

	s.logger.Debugf("ntag21x: %s: page 0x%02X <- % X", command, page, conf[:])
	return relabel(s.WritePage(page, conf), command)
}

// readConfig returns the current value of f.
func (s *Session) readConfig(f configField) (byte, error) {
	page, err := s.relativePage(f.name, f.offset)
	if err != nil {
		return 0, err
	}
	conf, err := s.readConfigPage(f.name, page)
	if err != nil {
		return 0, err
	}
	return (conf[f.byteIndex] >> f.shift) & f.mask, nil
}

// SetMirror selects the ASCII mirror.
func (s *Session) SetMirror(m Mirror) error {
	return s.updateConfig(fieldMirror, byte(m))
}

// Mirror returns the ASCII mirror setting.
func (s *Session) Mirror() (Mirror, error) {
	v, err := s.readConfig(fieldMirror)
	return Mirror(v), err
}

func (s *Session) SetMirrorByte(b MirrorByte) error {
	return s.updateConfig(fieldMirrorByte, byte(b))
}

func (s *Session) MirrorByte() (MirrorByte, error) {
	v, err := s.readConfig(fieldMirrorByte)
	return MirrorByte(v), err
}

func (s *Session) SetModulationMode(m ModulationMode) error {
	return s.updateConfig(fieldModulation, byte(m))
}

func (s *Session) ModulationMode() (ModulationMode, error) {
	v, err := s.readConfig(fieldModulation)
	return ModulationMode(v), err
}

// SetMirrorPage sets the page where the ASCII mirror starts.
func (s *Session) SetMirrorPage(page uint8) error {
	return s.updateConfig(fieldMirrorPage, page)
}

func (s *Session) MirrorPage() (uint8, error) {
	return s.readConfig(fieldMirrorPage)
}

// SetProtectStartPage sets AUTH0, the first page protected by the password.
// A value above the last page disables protection.
func (s *Session) SetProtectStartPage(page uint8) error {
	return s.updateConfig(fieldProtectStart, page)
}

func (s *Session) ProtectStartPage() (uint8, error) {
	return s.readConfig(fieldProtectStart)
}

// SetAccess sets or clears one flag of the ACCESS byte.
func (s *Session) SetAccess(a Access, enable bool) error {
	if !a.valid() {
		return newCommandError("set access", ErrInvalidArgument, "unknown flag %d", uint8(a))
	}
	var v byte
	if enable {
		v = 1
	}
	return s.updateConfig(accessField(a), v)
}

// Access reports whether one flag of the ACCESS byte is set.
func (s *Session) Access(a Access) (bool, error) {
	if !a.valid() {
		return false, newCommandError("access", ErrInvalidArgument, "unknown flag %d", uint8(a))
	}
	v, err := s.readConfig(accessField(a))
	return v == 1, err
}

// SetAuthLimit sets AUTHLIM, the number of failed PWD_AUTH attempts before
// the tag locks up. Values above MaxAuthLimit are rejected before any
// exchange.
func (s *Session) SetAuthLimit(limit uint8) error {
	if limit > MaxAuthLimit {
		return newCommandError("set authentication limit", ErrInvalidArgument,
			"%d exceeds %d", limit, MaxAuthLimit)
	}
	return s.updateConfig(fieldAuthLimit, limit)
}

func (s *Session) AuthLimit() (uint8, error) {
	return s.readConfig(fieldAuthLimit)
}
