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

// NTAG21x commands
const (
	cmdGetVersion = 0x60
	cmdRead       = 0x30
	cmdFastRead   = 0x3A
	cmdWrite      = 0xA2
	cmdCompWrite  = 0xA0
	cmdReadCnt    = 0x39
	cmdPwdAuth    = 0x1B
	cmdReadSig    = 0x3C

	ack = 0x0A

	// nfcCounterAddress is the only counter READ_CNT accepts.
	nfcCounterAddress = 0x02
	signatureAddress  = 0x00

	// MaxFastReadPages is the largest span a single FastRead may request.
	MaxFastReadPages = 15

	readLength      = 16
	versionLength   = 8
	signatureLength = 32
	counterLength   = 3
	packLength      = 2
	compWriteLength = 16
)

// Capability container magic
const (
	ccMagic   = 0xE1
	ccVersion = 0x10
	ccAccess  = 0x00
)

// Version holds the information returned by GET_VERSION
type Version struct {
	FixedHeader    uint8 // 0x00
	VendorID       uint8 // 0x04 = NXP Semiconductors
	ProductType    uint8 // 0x04 = NTAG
	ProductSubtype uint8 // 0x02 = 50 pF
	MajorVersion   uint8
	MinorVersion   uint8
	StorageSize    uint8 // 0x0F, 0x11 or 0x13
	ProtocolType   uint8 // 0x03 = ISO/IEC 14443-3
}

// Variant returns the variant encoded in the storage size.
func (v Version) Variant() Variant {
	return VariantFromStorageSize(v.StorageSize)
}

// GetVersion reads the version record. Its storage size resolves the last
// page; an unknown code sets it back to UnknownLastPage.
func (s *Session) GetVersion() (Version, error) {
	resp, err := s.exchangeCRC("get version", []byte{cmdGetVersion}, versionLength)
	if err != nil {
		return Version{}, err
	}
	v := Version{
		FixedHeader:    resp[0],
		VendorID:       resp[1],
		ProductType:    resp[2],
		ProductSubtype: resp[3],
		MajorVersion:   resp[4],
		MinorVersion:   resp[5],
		StorageSize:    resp[6],
		ProtocolType:   resp[7],
	}
	s.setLastPage(v.Variant())
	return v, nil
}

// ReadFourPages reads 16 bytes starting at page start. Reads past the last
// page wrap around to page 0.
func (s *Session) ReadFourPages(start uint8) ([16]byte, error) {
	var data [16]byte
	resp, err := s.exchangeCRC(fmt.Sprintf("read page %d", start), []byte{cmdRead, start}, readLength)
	if err != nil {
		return data, err
	}
	copy(data[:], resp)
	return data, nil
}

// ReadPage reads a single page.
func (s *Session) ReadPage(page uint8) ([4]byte, error) {
	var data [4]byte
	block, err := s.ReadFourPages(page)
	if err != nil {
		return data, err
	}
	copy(data[:], block[:PageSize])
	return data, nil
}

// FastRead reads the pages start..stop inclusive into buf and returns the
// number of bytes written. At most MaxFastReadPages pages can be read at a
// time and buf must hold all of them; both are checked before any exchange.
func (s *Session) FastRead(start, stop uint8, buf []byte) (int, error) {
	command := fmt.Sprintf("fast read %d-%d", start, stop)
	if err := s.checkInitialized(command); err != nil {
		return 0, err
	}
	if stop < start {
		return 0, newCommandError(command, ErrInvalidArgument, "stop page before start page")
	}
	pages := int(stop) - int(start) + 1
	if pages > MaxFastReadPages {
		return 0, newCommandError(command, ErrInvalidArgument, "%d pages, at most %d", pages, MaxFastReadPages)
	}
	n := pages * PageSize
	if len(buf) < n {
		return 0, newCommandError(command, ErrInvalidArgument, "buffer holds %d bytes, need %d", len(buf), n)
	}

	resp, err := s.exchangeCRC(command, []byte{cmdFastRead, start, stop}, n)
	if err != nil {
		return 0, err
	}
	return copy(buf, resp), nil
}

// readConfigPage reads one page with a single-page FAST_READ.
func (s *Session) readConfigPage(command string, page uint8) ([4]byte, error) {
	var data [4]byte
	if _, err := s.FastRead(page, page, data[:]); err != nil {
		return data, relabel(err, command)
	}
	return data, nil
}

// WritePage writes 4 bytes to page.
func (s *Session) WritePage(page uint8, data [4]byte) error {
	return s.exchangeAck(fmt.Sprintf("write page %d", page),
		[]byte{cmdWrite, page, data[0], data[1], data[2], data[3]})
}

// CompatibilityWritePage writes 4 bytes with the two-phase MIFARE
// Ultralight compatible COMPATIBILITY_WRITE. The 16-byte second frame
// carries the data followed by 12 zero bytes.
func (s *Session) CompatibilityWritePage(page uint8, data [4]byte) error {
	command := fmt.Sprintf("compatibility write page %d", page)
	if err := s.exchangeAck(command, []byte{cmdCompWrite, page}); err != nil {
		return err
	}

	payload := make([]byte, compWriteLength)
	copy(payload, data[:])
	return s.exchangeAck(command+" data", payload)
}

// ReadCounter reads the 24-bit NFC counter.
func (s *Session) ReadCounter() (uint32, error) {
	resp, err := s.exchangeCRC("read counter", []byte{cmdReadCnt, nfcCounterAddress}, counterLength)
	if err != nil {
		return 0, err
	}
	return uint32(resp[0]) | uint32(resp[1])<<8 | uint32(resp[2])<<16, nil
}

// ReadSignature reads the 32-byte ECC originality signature.
func (s *Session) ReadSignature() ([32]byte, error) {
	var sig [32]byte
	resp, err := s.exchangeCRC("read signature", []byte{cmdReadSig, signatureAddress}, signatureLength)
	if err != nil {
		return sig, err
	}
	copy(sig[:], resp)
	return sig, nil
}

// Authenticate sends PWD_AUTH. A tag that accepts the password but answers
// a PACK other than pack fails with ErrCredentialMismatch.
func (s *Session) Authenticate(pwd [4]byte, pack [2]byte) error {
	const command = "authenticate"
	resp, err := s.exchangeCRC(command, []byte{cmdPwdAuth, pwd[0], pwd[1], pwd[2], pwd[3]}, packLength)
	if err != nil {
		return err
	}
	if resp[0] != pack[0] || resp[1] != pack[1] {
		return newCommandError(command, ErrCredentialMismatch, "PACK % X", resp)
	}
	s.state = StateAuthenticated
	return nil
}

// SerialNumber reads the 7-byte UID from pages 0 and 1, skipping BCC0.
func (s *Session) SerialNumber() ([7]byte, error) {
	var sn [7]byte
	block, err := s.ReadFourPages(pageSerial0)
	if err != nil {
		return sn, relabel(err, "serial number")
	}
	copy(sn[:3], block[0:3])
	copy(sn[3:], block[4:8])
	return sn, nil
}

// CapabilityContainer reads page 3 through a read of page 0 and resolves
// the variant and last page from the size byte.
func (s *Session) CapabilityContainer() (Variant, error) {
	const command = "capability container"
	block, err := s.ReadFourPages(pageSerial0)
	if err != nil {
		return VariantUnknown, relabel(err, command)
	}

	cc := block[pageCC*PageSize : pageCC*PageSize+PageSize]
	if cc[0] != ccMagic || cc[1] != ccVersion || cc[3] != ccAccess {
		return VariantUnknown, newCommandError(command, ErrDataInvalid, "CC % X", cc)
	}
	v := variantFromCCSize(cc[2])
	if v == VariantUnknown {
		return VariantUnknown, newCommandError(command, ErrDataInvalid, "size byte 0x%02X", cc[2])
	}
	s.setLastPage(v)
	return v, nil
}

// SetPassword writes the 32-bit password to the PWD page.
func (s *Session) SetPassword(pwd [4]byte) error {
	page, err := s.relativePage("set password", offsetPassword)
	if err != nil {
		return err
	}
	return relabel(s.WritePage(page, pwd), "set password")
}

// SetPack writes the 16-bit password acknowledge to the PACK page.
func (s *Session) SetPack(pack [2]byte) error {
	page, err := s.relativePage("set pack", offsetPack)
	if err != nil {
		return err
	}
	return relabel(s.WritePage(page, [4]byte{pack[0], pack[1], 0x00, 0x00}), "set pack")
}

// SetDynamicLock writes the three dynamic lock bytes.
func (s *Session) SetDynamicLock(lock [3]byte) error {
	page, err := s.relativePage("set dynamic lock", offsetDynamicLock)
	if err != nil {
		return err
	}
	return relabel(s.WritePage(page, [4]byte{lock[0], lock[1], lock[2], 0x00}), "set dynamic lock")
}

// DynamicLock reads the three dynamic lock bytes.
func (s *Session) DynamicLock() ([3]byte, error) {
	var lock [3]byte
	page, err := s.relativePage("dynamic lock", offsetDynamicLock)
	if err != nil {
		return lock, err
	}
	data, err := s.readConfigPage("dynamic lock", page)
	if err != nil {
		return lock, err
	}
	copy(lock[:], data[:3])
	return lock, nil
}

// SetStaticLock writes the two static lock bytes of page 2. The tag ORs
// the written bits into the lock bytes and ignores the first two bytes.
func (s *Session) SetStaticLock(lock [2]byte) error {
	return relabel(s.WritePage(pageStaticLock, [4]byte{0x00, 0x00, lock[0], lock[1]}), "set static lock")
}

// StaticLock reads the two static lock bytes of page 2.
func (s *Session) StaticLock() ([2]byte, error) {
	var lock [2]byte
	data, err := s.readConfigPage("static lock", pageStaticLock)
	if err != nil {
		return lock, err
	}
	copy(lock[:], data[2:4])
	return lock, nil
}

// Transceive passes request through to the transceiver unchanged. The
// session must be initialized; the reply is not validated.
func (s *Session) Transceive(request []byte, capacity int) ([]byte, error) {
	if err := s.checkInitialized("transceive"); err != nil {
		return nil, err
	}
	resp, err := s.transceiver.Transceive(request, capacity)
	if err != nil {
		return nil, transportError("transceive", err)
	}
	return resp, nil
}

// relabel renames the command of a CommandError so failures of composed
// operations report the operation the caller invoked.
func relabel(err error, command string) error {
	if err == nil {
		return nil
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return &CommandError{
			Command: command,
			Err:     ce.Err,
			Cause:   ce.Cause,
			Detail:  joinDetail(ce.Command, ce.Detail),
		}
	}
	return err
}

func joinDetail(inner, detail string) string {
	if detail == "" {
		return inner
	}
	return inner + ": " + detail
}
