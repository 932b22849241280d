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
	"fmt"
)

// Tag is a tag found by Search.
type Tag struct {
	// UID is the 7-byte unique identifier.
	UID [7]byte
	// CascadeID holds the raw CL1 and CL2 anticollision answers, cascade
	// tag included.
	CascadeID [8]byte
	Variant   Variant
}

// UIDString returns the UID as lowercase hex.
func (t Tag) UIDString() string {
	return fmt.Sprintf("%x", t.UID[:])
}

// UIDFromCascade assembles the 7-byte UID from the CL1 and CL2 answers,
// dropping the cascade tag.
func UIDFromCascade(cl1, cl2 [4]byte) [7]byte {
	return [7]byte{cl1[1], cl1[2], cl1[3], cl2[0], cl2[1], cl2[2], cl2[3]}
}

// identify runs one full REQA, cascade and capability container cycle.
func (s *Session) identify() (Tag, error) {
	var tag Tag
	if _, err := s.Request(); err != nil {
		return tag, err
	}
	cl1, err := s.Anticollision(CascadeLevel1)
	if err != nil {
		return tag, err
	}
	if err := s.Select(CascadeLevel1, cl1); err != nil {
		return tag, err
	}
	cl2, err := s.Anticollision(CascadeLevel2)
	if err != nil {
		return tag, err
	}
	if err := s.Select(CascadeLevel2, cl2); err != nil {
		return tag, err
	}
	v, err := s.CapabilityContainer()
	if err != nil {
		return tag, err
	}

	copy(tag.CascadeID[:4], cl1[:])
	copy(tag.CascadeID[4:], cl2[:])
	tag.UID = UIDFromCascade(cl1, cl2)
	tag.Variant = v
	return tag, nil
}

// Search polls for a tag until one is selected and identified.
//
// A negative timeout retries forever, 0 makes a single attempt and a
// positive timeout allows that many retries, so at most timeout+1 attempts.
// Failed attempts are separated by the search delay. When no attempt
// succeeds the error matches ErrSearchTimeout and the last attempt's error.
func (s *Session) Search(timeout int) (Tag, error) {
	if err := s.checkInitialized("search"); err != nil {
		return Tag{}, err
	}

	for attempt := 1; ; attempt++ {
		tag, err := s.identify()
		if err == nil {
			s.logger.Debugf("ntag21x: search: found %s %s after %d attempt(s)",
				tag.Variant, tag.UIDString(), attempt)
			return tag, nil
		}
		s.logger.Debugf("ntag21x: search attempt %d: %v", attempt, err)

		switch {
		case timeout < 0:
		case timeout == 0:
			return Tag{}, errors.Join(ErrSearchTimeout, err)
		default:
			timeout--
		}
		s.delay(s.searchDelay)
	}
}
