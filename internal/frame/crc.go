// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package frame holds the byte-level framing shared by the tag codec and the
// PN532 links: the ISO/IEC 14443-3 type A CRC and the PN532 host frame format.
package frame

// crcAPreset is the initial register value for CRC_A.
const crcAPreset = 0x6363

// CRCA computes the ISO/IEC 14443-3 type A CRC over data.
// The result is in transmission order: low byte first, high byte second.
func CRCA(data []byte) [2]byte {
	crc := uint32(crcAPreset)
	for _, b := range data {
		b ^= byte(crc & 0xFF)
		b ^= b << 4
		x := uint32(b)
		crc = ((crc >> 8) ^ (x << 8) ^ (x << 3) ^ (x >> 4)) & 0xFFFF
	}
	return [2]byte{byte(crc & 0xFF), byte((crc >> 8) & 0xFF)}
}

// AppendCRCA appends the CRC_A of data to data and returns the extended slice.
func AppendCRCA(data []byte) []byte {
	crc := CRCA(data)
	return append(data, crc[0], crc[1])
}

// CheckCRCA reports whether the last two bytes of frm are the CRC_A of the
// bytes before them. Frames shorter than three bytes never check.
func CheckCRCA(frm []byte) bool {
	if len(frm) < 3 {
		return false
	}
	n := len(frm) - 2
	crc := CRCA(frm[:n])
	return frm[n] == crc[0] && frm[n+1] == crc[1]
}

// BCC returns the block check character of an anticollision UID chunk,
// the XOR of its bytes.
func BCC(data []byte) byte {
	var bcc byte
	for _, b := range data {
		bcc ^= b
	}
	return bcc
}
