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
	"fmt"

	gondef "github.com/hsanjuan/go-ndef"
)

// uriPrefixes are the abbreviations of the NFC Forum URI record type,
// indexed by identifier code.
var uriPrefixes = []string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

func payloadBytes(rec *gondef.Record) ([]byte, bool) {
	payload, err := rec.Payload()
	if err != nil || payload == nil {
		return nil, false
	}
	return payload.Marshal(), true
}

func isWellKnown(rec *gondef.Record, typ string) bool {
	return rec.TNF() == gondef.NFCForumWellKnownType && rec.Type() == typ
}

// Text returns the text of a well-known text record ("T").
func Text(rec *gondef.Record) (string, bool) {
	if !isWellKnown(rec, "T") {
		return "", false
	}
	payload, ok := payloadBytes(rec)
	if !ok || len(payload) < 1 {
		return "", false
	}

	// status byte: bit 7 UTF-16, bits 5-0 language code length
	langLen := int(payload[0] & 0x3F)
	if len(payload) < 1+langLen {
		return "", false
	}
	return string(payload[1+langLen:]), true
}

// URI returns the expanded URI of a well-known URI record ("U").
func URI(rec *gondef.Record) (string, bool) {
	if !isWellKnown(rec, "U") {
		return "", false
	}
	payload, ok := payloadBytes(rec)
	if !ok || len(payload) < 1 {
		return "", false
	}

	code := int(payload[0])
	if code >= len(uriPrefixes) {
		return "", false
	}
	return uriPrefixes[code] + string(payload[1:]), true
}

// Describe returns a one-line summary of rec.
func Describe(rec *gondef.Record) string {
	if text, ok := Text(rec); ok {
		return fmt.Sprintf("text: %q", text)
	}
	if uri, ok := URI(rec); ok {
		return "uri: " + uri
	}

	payload, _ := payloadBytes(rec)
	switch rec.TNF() {
	case gondef.MediaType:
		return fmt.Sprintf("media %s: %d bytes", rec.Type(), len(payload))
	case gondef.AbsoluteURI:
		return "absolute uri: " + rec.Type()
	case gondef.NFCForumExternalType:
		return fmt.Sprintf("external %s: %d bytes", rec.Type(), len(payload))
	case gondef.NFCForumWellKnownType:
		return fmt.Sprintf("well-known %s: %d bytes", rec.Type(), len(payload))
	default:
		return fmt.Sprintf("TNF %d: %d bytes", rec.TNF(), len(payload))
	}
}
