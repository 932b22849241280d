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

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
)

// ISO/IEC 14443-3 type A commands
const (
	cmdREQA = 0x26
	cmdWUPA = 0x52
	cmdHLTA = 0x50

	cmdSelectCL1 = 0x93
	cmdSelectCL2 = 0x95

	nvbAnticollision = 0x20 // NVB for a bare anticollision frame
	nvbSelect        = 0x70 // NVB for a full select frame
)

// Expected tag answers
var atqaNTAG21x = [2]byte{0x44, 0x00}

const (
	sakCL1 = 0x04 // UID not complete
	sakCL2 = 0x00 // UID complete, not ISO/IEC 14443-4 compliant

	// CascadeTag is the first byte of the CL1 UID chunk of a 7-byte UID.
	CascadeTag = 0x88
)

// CascadeLevel selects which half of a 7-byte UID is addressed.
type CascadeLevel uint8

const (
	CascadeLevel1 CascadeLevel = 1
	CascadeLevel2 CascadeLevel = 2
)

func (l CascadeLevel) selCode() (byte, error) {
	switch l {
	case CascadeLevel1:
		return cmdSelectCL1, nil
	case CascadeLevel2:
		return cmdSelectCL2, nil
	default:
		return 0, fmt.Errorf("%w: cascade level %d", ErrInvalidArgument, uint8(l))
	}
}

// Request sends REQA and classifies the tag family from the ATQA.
func (s *Session) Request() (Family, error) {
	return s.requestFamily("request", cmdREQA)
}

// WakeUp sends WUPA, which also reaches halted tags. It waits 1 ms first.
func (s *Session) WakeUp() (Family, error) {
	if err := s.checkInitialized("wake-up"); err != nil {
		return FamilyUnknown, err
	}
	s.delay(wakeUpDelay)
	return s.requestFamily("wake-up", cmdWUPA)
}

func (s *Session) requestFamily(command string, code byte) (Family, error) {
	resp, err := s.exchange(command, []byte{code}, 2)
	if err != nil {
		return FamilyUnknown, err
	}
	if resp[0] != atqaNTAG21x[0] || resp[1] != atqaNTAG21x[1] {
		s.family = FamilyUnknown
		return FamilyUnknown, newCommandError(command, ErrInvalidType, "ATQA % X", resp)
	}
	s.family = FamilyNTAG21x
	s.state = StateReady
	return s.family, nil
}

// Halt sends HLTA. A halted tag only answers WUPA. The tag acknowledges
// HLTA by staying silent, so the outcome of the exchange is only logged.
func (s *Session) Halt() error {
	if err := s.checkInitialized("halt"); err != nil {
		return err
	}
	req := frame.AppendCRCA([]byte{cmdHLTA, 0x00})
	s.logger.Debugf("ntag21x: halt -> % X", req)
	if resp, err := s.transceiver.Transceive(req, 1); err != nil {
		s.logger.Debugf("ntag21x: halt: %v", err)
	} else {
		s.logger.Debugf("ntag21x: halt <- % X", resp)
	}
	return nil
}

// Anticollision returns the 4 UID bytes answered at the given cascade level,
// after checking them against the BCC.
func (s *Session) Anticollision(level CascadeLevel) ([4]byte, error) {
	var id [4]byte
	command := fmt.Sprintf("anticollision CL%d", level)
	sel, err := level.selCode()
	if err != nil {
		return id, &CommandError{Command: command, Err: ErrInvalidArgument, Detail: err.Error()}
	}

	resp, err := s.exchange(command, []byte{sel, nvbAnticollision}, 5)
	if err != nil {
		return id, err
	}
	copy(id[:], resp[:4])
	if bcc := frame.BCC(id[:]); bcc != resp[4] {
		return id, newCommandError(command, ErrSelection, "BCC 0x%02X, want 0x%02X", resp[4], bcc)
	}
	return id, nil
}

// Select selects the tag at the given cascade level with the UID bytes
// returned by Anticollision and checks the SAK.
func (s *Session) Select(level CascadeLevel, id [4]byte) error {
	command := fmt.Sprintf("select CL%d", level)
	sel, err := level.selCode()
	if err != nil {
		return &CommandError{Command: command, Err: ErrInvalidArgument, Detail: err.Error()}
	}

	req := []byte{sel, nvbSelect, id[0], id[1], id[2], id[3], frame.BCC(id[:])}
	resp, err := s.exchange(command, frame.AppendCRCA(req), 1)
	if err != nil {
		return err
	}

	want := byte(sakCL1)
	next := StateSelectedCL1
	if level == CascadeLevel2 {
		want = sakCL2
		next = StateSelected
	}
	if resp[0] != want {
		return newCommandError(command, ErrSelection, "SAK 0x%02X, want 0x%02X", resp[0], want)
	}
	s.state = next
	return nil
}
