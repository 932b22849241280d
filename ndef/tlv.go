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

package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TLV block types of an NFC Forum Type 2 tag data area
const (
	tlvNull        = 0x00
	tlvLockControl = 0x01
	tlvMemControl  = 0x02
	tlvMessage     = 0x03
	tlvProprietary = 0xFD
	tlvTerminator  = 0xFE

	// longLengthMarker announces a three byte length field.
	longLengthMarker = 0xFF
	maxShortLength   = 0xFE
	maxLongLength    = 0xFFFE
)

// TLV errors
var (
	ErrNoMessage  = errors.New("ndef: no NDEF message TLV")
	ErrInvalidTLV = errors.New("ndef: malformed TLV")
	// errShortTLV means the data ends inside a TLV, errEndOfData that it
	// ends between two. Readers fetch more pages and try again.
	errShortTLV  = fmt.Errorf("%w: truncated", ErrInvalidTLV)
	errEndOfData = errors.New("ndef: end of data")
)

// EncodeTLV wraps an NDEF message in an NDEF message TLV followed by a
// terminator TLV. Messages longer than 254 bytes use the long length form.
func EncodeTLV(message []byte) ([]byte, error) {
	n := len(message)
	if n > maxLongLength {
		return nil, fmt.Errorf("%w: message of %d bytes", ErrMessageTooLarge, n)
	}

	out := make([]byte, 0, n+5)
	out = append(out, tlvMessage)
	if n <= maxShortLength {
		out = append(out, byte(n))
	} else {
		out = append(out, longLengthMarker, 0, 0)
		binary.BigEndian.PutUint16(out[2:4], uint16(n))
	}
	out = append(out, message...)
	return append(out, tlvTerminator), nil
}

// DecodeTLV walks the TLV blocks of a data area and returns the value of
// the first NDEF message TLV. NULL, lock control, memory control and
// proprietary TLVs are skipped. Reaching a terminator TLV or the end of
// data first is ErrNoMessage.
func DecodeTLV(data []byte) ([]byte, error) {
	value, err := scanTLV(data)
	if errors.Is(err, errEndOfData) {
		return nil, ErrNoMessage
	}
	return value, err
}

func scanTLV(data []byte) ([]byte, error) {
	off := 0
	for off < len(data) {
		typ := data[off]
		switch typ {
		case tlvNull:
			off++
			continue
		case tlvTerminator:
			return nil, ErrNoMessage
		case tlvLockControl, tlvMemControl, tlvProprietary, tlvMessage:
		default:
			return nil, fmt.Errorf("%w: unknown type 0x%02X at offset %d", ErrInvalidTLV, typ, off)
		}

		length, header, err := tlvLength(data[off+1:])
		if err != nil {
			return nil, err
		}
		start := off + 1 + header
		end := start + length
		if end > len(data) {
			return nil, errShortTLV
		}
		if typ == tlvMessage {
			value := make([]byte, length)
			copy(value, data[start:end])
			return value, nil
		}
		off = end
	}
	return nil, errEndOfData
}

// tlvLength decodes the length field at the start of data and returns the
// length and the size of the field.
func tlvLength(data []byte) (length, size int, err error) {
	if len(data) < 1 {
		return 0, 0, errShortTLV
	}
	if data[0] != longLengthMarker {
		return int(data[0]), 1, nil
	}
	if len(data) < 3 {
		return 0, 0, errShortTLV
	}
	return int(binary.BigEndian.Uint16(data[1:3])), 3, nil
}
