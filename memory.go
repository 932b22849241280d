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

import "fmt"

// UnknownLastPage is the lastPage value of a session whose tag variant has
// not been resolved yet.
const UnknownLastPage uint8 = 0xFF

// Memory layout common to all NTAG21x variants
const (
	PageSize = 4 // bytes per page

	pageSerial0    = 0 // UID bytes 0-2 + BCC0
	pageSerial1    = 1 // UID bytes 3-6
	pageStaticLock = 2 // BCC1, internal, static lock bytes 0-1
	pageCC         = 3 // Capability container

	// UserMemoryStart is the first page of user memory.
	UserMemoryStart = 4

	// Offsets from the last page
	offsetPack        = 0
	offsetPassword    = 1
	offsetCFG1        = 2
	offsetCFG0        = 3
	offsetDynamicLock = 4
)

// Storage-size codes reported by GET_VERSION
const (
	storageSize213 = 0x0F
	storageSize215 = 0x11
	storageSize216 = 0x13
)

// Capability container size bytes (page 3, byte 2)
const (
	ccSize213 = 0x12 // 144 bytes
	ccSize215 = 0x3E // 496 bytes
	ccSize216 = 0x6D // 872 bytes
)

// Variant identifies the storage size of an NTAG21x tag.
type Variant uint8

const (
	// VariantUnknown represents an unresolved or unsupported tag.
	VariantUnknown Variant = iota
	// VariantNTAG213 has 144 bytes of user memory, last page 0x2C.
	VariantNTAG213
	// VariantNTAG215 has 496 bytes of user memory, last page 0x86.
	VariantNTAG215
	// VariantNTAG216 has 872 bytes of user memory, last page 0xE6.
	VariantNTAG216
)

func (v Variant) String() string {
	switch v {
	case VariantNTAG213:
		return "NTAG213"
	case VariantNTAG215:
		return "NTAG215"
	case VariantNTAG216:
		return "NTAG216"
	case VariantUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// LastPage returns the highest page index of the variant, or
// UnknownLastPage.
func (v Variant) LastPage() uint8 {
	switch v {
	case VariantNTAG213:
		return 0x2C
	case VariantNTAG215:
		return 0x86
	case VariantNTAG216:
		return 0xE6
	case VariantUnknown:
		return UnknownLastPage
	default:
		return UnknownLastPage
	}
}

// UserMemorySize returns the number of user data bytes, as advertised by the
// capability container.
func (v Variant) UserMemorySize() int {
	switch v {
	case VariantNTAG213:
		return 144
	case VariantNTAG215:
		return 496
	case VariantNTAG216:
		return 872
	case VariantUnknown:
		return 0
	default:
		return 0
	}
}

// VariantFromStorageSize maps a GET_VERSION storage-size code to a variant.
func VariantFromStorageSize(code uint8) Variant {
	switch code {
	case storageSize213:
		return VariantNTAG213
	case storageSize215:
		return VariantNTAG215
	case storageSize216:
		return VariantNTAG216
	default:
		return VariantUnknown
	}
}

// variantFromCCSize maps the capability container size byte to a variant.
func variantFromCCSize(size uint8) Variant {
	switch size {
	case ccSize213:
		return VariantNTAG213
	case ccSize215:
		return VariantNTAG215
	case ccSize216:
		return VariantNTAG216
	default:
		return VariantUnknown
	}
}

// Layout gives the absolute page numbers of the system pages for a
// resolved last page.
type Layout struct {
	DynamicLock uint8
	CFG0        uint8
	CFG1        uint8
	Password    uint8
	Pack        uint8
	// UserEnd is the last page of user memory.
	UserEnd uint8
}

// LayoutFor computes the memory layout relative to lastPage.
func LayoutFor(lastPage uint8) Layout {
	return Layout{
		DynamicLock: lastPage - offsetDynamicLock,
		CFG0:        lastPage - offsetCFG0,
		CFG1:        lastPage - offsetCFG1,
		Password:    lastPage - offsetPassword,
		Pack:        lastPage - offsetPack,
		UserEnd:     lastPage - offsetDynamicLock - 1,
	}
}
