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

/*
Package ntag21x drives NXP NTAG213, NTAG215 and NTAG216 NFC tags at the
command level.

A Session frames the tag commands (ISO/IEC 14443-3 type A selection and the
NTAG21x command set), appends and verifies CRC_A, and validates every reply
before returning typed results. The byte exchange itself is delegated to a
Transceiver, such as the PN532 front end in transport/pn532.

Features:
  - REQA/WUPA, two-level anticollision and select, HLTA
  - READ, FAST_READ, WRITE, COMPATIBILITY_WRITE
  - GET_VERSION, READ_CNT, READ_SIG, PWD_AUTH
  - Variant detection from the capability container or the version record
  - Read-modify-write helpers for the CFG0/CFG1 configuration pages
  - A polling Search loop with a bounded or unbounded attempt count

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-ntag21x"
	    "github.com/ZaparooProject/go-ntag21x/transport/pn532"
	)

	link, err := pn532.NewUART("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	session := ntag21x.New(pn532.NewTransceiver(link))
	if err := session.Init(); err != nil {
	    log.Fatal(err)
	}
	defer session.Deinit()

	tag, err := session.Search(10)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("%s %s\n", tag.Variant, tag.UIDString())

	page, err := session.ReadPage(ntag21x.UserMemoryStart)

Errors:

Every failure wraps one of the error kinds (ErrTransport, ErrFraming,
ErrIntegrity, ErrAck, ErrSelection, ErrDataInvalid, ErrCredentialMismatch,
ErrInvalidArgument, ErrNotInitialized, ErrConfiguration) and can be tested
with errors.Is. IsTransient tells whether retrying the operation can help.

Concurrency:

A Session must not be used from more than one goroutine at a time. Nothing
is retried internally except by Search.
*/
package ntag21x
