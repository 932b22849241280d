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

// Package ndef reads and writes NDEF messages in the user memory of an
// NTAG21x tag, stored as NFC Forum Type 2 TLV blocks starting at page 4.
// Records are built and parsed with github.com/hsanjuan/go-ndef.
package ndef

import (
	"errors"
	"fmt"

	ntag21x "github.com/ZaparooProject/go-ntag21x"
	gondef "github.com/hsanjuan/go-ndef"
)

// Tag is the part of a session the NDEF helpers need. *ntag21x.Session
// implements it; the tag must be selected and its variant resolved.
type Tag interface {
	LastPage() uint8
	FastRead(start, stop uint8, buf []byte) (int, error)
	WritePage(page uint8, data [4]byte) error
}

var (
	ErrMessageTooLarge = errors.New("ndef: message does not fit in user memory")
	ErrEmptyMessage    = errors.New("ndef: message has no records")
	ErrNoTextRecord    = errors.New("ndef: no text record")
	ErrNoURIRecord     = errors.New("ndef: no URI record")
)

// userArea returns the first and last page of user memory.
func userArea(t Tag) (start, end uint8, err error) {
	last := t.LastPage()
	if last == ntag21x.UnknownLastPage {
		return 0, 0, fmt.Errorf("ndef: %w", ntag21x.ErrLastPageUnknown)
	}
	return ntag21x.UserMemoryStart, ntag21x.LayoutFor(last).UserEnd, nil
}

// Capacity returns the number of bytes of user memory available for TLV
// blocks.
func Capacity(t Tag) (int, error) {
	start, end, err := userArea(t)
	if err != nil {
		return 0, err
	}
	return (int(end) - int(start) + 1) * ntag21x.PageSize, nil
}

// ReadRaw returns the value of the NDEF message TLV. User memory is read
// with FAST_READ in chunks of ntag21x.MaxFastReadPages pages, stopping as
// soon as the message TLV is complete.
func ReadRaw(t Tag) ([]byte, error) {
	start, end, err := userArea(t)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, (int(end)-int(start)+1)*ntag21x.PageSize)
	buf := make([]byte, ntag21x.MaxFastReadPages*ntag21x.PageSize)
	for page := int(start); page <= int(end); page += ntag21x.MaxFastReadPages {
		stop := min(page+ntag21x.MaxFastReadPages-1, int(end))
		n, err := t.FastRead(uint8(page), uint8(stop), buf)
		if err != nil {
			return nil, fmt.Errorf("ndef: read pages %d-%d: %w", page, stop, err)
		}
		data = append(data, buf[:n]...)

		value, err := scanTLV(data)
		switch {
		case err == nil:
			return value, nil
		case errors.Is(err, errEndOfData), errors.Is(err, errShortTLV):
			continue
		default:
			return nil, err
		}
	}
	return DecodeTLV(data)
}

// WriteRaw stores message as the NDEF message TLV at the start of user
// memory, followed by a terminator TLV. The last page is padded with zeros.
func WriteRaw(t Tag, message []byte) error {
	capacity, err := Capacity(t)
	if err != nil {
		return err
	}
	tlv, err := EncodeTLV(message)
	if err != nil {
		return err
	}
	if len(tlv) > capacity {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrMessageTooLarge, len(tlv), capacity)
	}

	for off := 0; off < len(tlv); off += ntag21x.PageSize {
		var data [4]byte
		copy(data[:], tlv[off:])
		page := ntag21x.UserMemoryStart + off/ntag21x.PageSize
		if err := t.WritePage(uint8(page), data); err != nil {
			return fmt.Errorf("ndef: write page %d: %w", page, err)
		}
	}
	return nil
}

// Erase leaves an empty NDEF message TLV, the NFC Forum initialized state.
func Erase(t Tag) error {
	return WriteRaw(t, nil)
}

// ReadMessage reads and parses the NDEF message stored on the tag.
func ReadMessage(t Tag) (*gondef.Message, error) {
	raw, err := ReadRaw(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &gondef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("ndef: parse message: %w", err)
	}
	if len(msg.Records) == 0 {
		return nil, ErrEmptyMessage
	}
	return msg, nil
}

// WriteMessage marshals msg and writes it to the tag. The message begin and
// end flags are set on the first and last record.
func WriteMessage(t Tag, msg *gondef.Message) error {
	if msg == nil || len(msg.Records) == 0 {
		return ErrEmptyMessage
	}
	for i, rec := range msg.Records {
		rec.SetMB(i == 0)
		rec.SetME(i == len(msg.Records)-1)
	}

	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("ndef: marshal message: %w", err)
	}
	return WriteRaw(t, payload)
}

// ReadText returns the text of the first text record.
func ReadText(t Tag) (string, error) {
	msg, err := ReadMessage(t)
	if err != nil {
		return "", err
	}
	for _, rec := range msg.Records {
		if text, ok := Text(rec); ok {
			return text, nil
		}
	}
	return "", ErrNoTextRecord
}

// ReadURI returns the URI of the first URI record.
func ReadURI(t Tag) (string, error) {
	msg, err := ReadMessage(t)
	if err != nil {
		return "", err
	}
	for _, rec := range msg.Records {
		if uri, ok := URI(rec); ok {
			return uri, nil
		}
	}
	return "", ErrNoURIRecord
}

// WriteText replaces the tag's message with a single English text record.
func WriteText(t Tag, text string) error {
	return WriteMessage(t, &gondef.Message{
		Records: []*gondef.Record{gondef.NewTextRecord(text, "en")},
	})
}

// WriteURI replaces the tag's message with a single URI record.
func WriteURI(t Tag, uri string) error {
	return WriteMessage(t, &gondef.Message{
		Records: []*gondef.Record{gondef.NewURIRecord(uri)},
	})
}
