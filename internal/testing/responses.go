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

package testing

import "github.com/ZaparooProject/go-ntag21x/internal/frame"

// TestUID is the default UID of virtual tags and scripted replies.
var TestUID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}

// Storage size codes reported by GET_VERSION
const (
	StorageSizeNTAG213 = 0x0F
	StorageSizeNTAG215 = 0x11
	StorageSizeNTAG216 = 0x13
)

// BuildATQAResponse returns the NTAG21x answer to REQA/WUPA.
func BuildATQAResponse() []byte {
	return []byte{0x44, 0x00}
}

// BuildAckResponse returns the 4-bit ACK as delivered by the reader.
func BuildAckResponse() []byte {
	return []byte{tagACK}
}

// BuildNakResponse returns a NAK for an invalid argument.
func BuildNakResponse() []byte {
	return []byte{tagNAK}
}

// BuildAnticollisionResponse returns the CL1 (level 1) or CL2 reply for a
// 7-byte uid: four UID bytes and their BCC.
func BuildAnticollisionResponse(uid []byte, level int) []byte {
	var chunk []byte
	if level == 1 {
		chunk = []byte{0x88, uid[0], uid[1], uid[2]}
	} else {
		chunk = []byte{uid[3], uid[4], uid[5], uid[6]}
	}
	return append(chunk, frame.BCC(chunk))
}

// BuildSAKResponse returns the select acknowledge for the cascade level.
func BuildSAKResponse(level int) []byte {
	if level == 1 {
		return []byte{0x04}
	}
	return []byte{0x00}
}

// BuildVersionResponse returns a GET_VERSION reply with CRC.
func BuildVersionResponse(storageSize byte) []byte {
	return frame.AppendCRCA([]byte{0x00, 0x04, 0x04, 0x02, 0x01, 0x00, storageSize, 0x03})
}

// BuildReadResponse returns a READ reply carrying the 16 data bytes with CRC.
// Shorter data is zero padded.
func BuildReadResponse(data []byte) []byte {
	out := make([]byte, 16, 18)
	copy(out, data)
	return frame.AppendCRCA(out)
}

// BuildCCReadResponse returns the READ reply for page 0 of a tag with uid
// and capability container size byte ccSize.
func BuildCCReadResponse(uid []byte, ccSize byte) []byte {
	bcc0 := 0x88 ^ uid[0] ^ uid[1] ^ uid[2]
	bcc1 := uid[3] ^ uid[4] ^ uid[5] ^ uid[6]
	return BuildReadResponse([]byte{
		uid[0], uid[1], uid[2], bcc0,
		uid[3], uid[4], uid[5], uid[6],
		bcc1, 0x48, 0x00, 0x00,
		0xE1, 0x10, ccSize, 0x00,
	})
}

// BuildCRCResponse appends CRC_A to data, for FAST_READ, READ_CNT,
// READ_SIG and PWD_AUTH replies.
func BuildCRCResponse(data ...byte) []byte {
	return frame.AppendCRCA(append([]byte(nil), data...))
}
