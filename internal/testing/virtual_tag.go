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

package testing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// ErrNoResponse is returned by a virtual tag that stays silent, the way a
// reader reports a receive timeout.
var ErrNoResponse = errors.New("virtual tag: no response")

// Tag answers
const (
	tagACK   = 0x0A
	tagNAK   = 0x00 // invalid argument or address
	tagNAKCR = 0x01 // CRC or parity error
)

// Commands understood by VirtualNTAG
const (
	CmdREQA       = 0x26
	CmdWUPA       = 0x52
	CmdHLTA       = 0x50
	CmdCL1        = 0x93
	CmdCL2        = 0x95
	CmdGetVersion = 0x60
	CmdRead       = 0x30
	CmdFastRead   = 0x3A
	CmdWrite      = 0xA2
	CmdCompWrite  = 0xA0
	CmdReadCnt    = 0x39
	CmdPwdAuth    = 0x1B
	CmdReadSig    = 0x3C
)

// tagState is the ISO/IEC 14443-3 state of the virtual tag
type tagState int

const (
	stateIdle tagState = iota
	stateReady1
	stateReady2
	stateActive
	stateAuthenticated
	stateHalt
)

// Fault is a misbehaviour injected into the replies of one command.
type Fault int

const (
	// FaultNone clears a fault.
	FaultNone Fault = iota
	// FaultTimeout makes the tag stay silent.
	FaultTimeout
	// FaultCorruptCRC flips a bit of the CRC_A of the reply.
	FaultCorruptCRC
	// FaultCorruptBCC flips a bit of the BCC of an anticollision reply.
	FaultCorruptBCC
	// FaultNAK replaces the reply with a NAK.
	FaultNAK
	// FaultWrongSAK answers select with SAK 0x20.
	FaultWrongSAK
	// FaultWrongATQA answers REQA/WUPA with ATQA 04 00.
	FaultWrongATQA
	// FaultShortReply drops the last byte of the reply.
	FaultShortReply
)

type injectedFault struct {
	fault     Fault
	remaining int // <0 means until cleared
}

// VirtualNTAG simulates an NTAG213/215/216 at the command level. It
// implements the Transceiver contract of the ntag21x package, so sessions
// can be driven against it directly, and it sits behind VirtualPN532 for
// wire-level tests.
type VirtualNTAG struct {
	faults         map[byte]*injectedFault
	calls          map[byte]int
	Type           string
	memory         [][4]byte
	uid            [7]byte
	signature      [32]byte
	version        [8]byte
	mu             syncutil.Mutex
	counter        uint32
	exchanges      int
	state          tagState
	compWritePage  int
	lastPage       uint8
	present        bool
	counterPending bool
	inited         bool
}

// NewVirtualNTAG213 creates a virtual NTAG213 tag. A nil uid selects TestUID.
func NewVirtualNTAG213(uid []byte) *VirtualNTAG {
	return newVirtualNTAG("NTAG213", uid, 0x2C, 0x0F, 0x12)
}

// NewVirtualNTAG215 creates a virtual NTAG215 tag.
func NewVirtualNTAG215(uid []byte) *VirtualNTAG {
	return newVirtualNTAG("NTAG215", uid, 0x86, 0x11, 0x3E)
}

// NewVirtualNTAG216 creates a virtual NTAG216 tag.
func NewVirtualNTAG216(uid []byte) *VirtualNTAG {
	return newVirtualNTAG("NTAG216", uid, 0xE6, 0x13, 0x6D)
}

func newVirtualNTAG(typ string, uid []byte, lastPage, storageSize, ccSize uint8) *VirtualNTAG {
	if uid == nil {
		uid = TestUID
	}
	v := &VirtualNTAG{
		Type:          typ,
		lastPage:      lastPage,
		memory:        make([][4]byte, int(lastPage)+1),
		faults:        make(map[byte]*injectedFault),
		calls:         make(map[byte]int),
		present:       true,
		compWritePage: -1,
		version:       [8]byte{0x00, 0x04, 0x04, 0x02, 0x01, 0x00, storageSize, 0x03},
	}
	copy(v.uid[:], uid)
	for i := range v.signature {
		v.signature[i] = byte(i*7 + 1)
	}
	v.initMemory(ccSize)
	return v
}

func (v *VirtualNTAG) initMemory(ccSize uint8) {
	u := v.uid
	bcc0 := 0x88 ^ u[0] ^ u[1] ^ u[2]
	bcc1 := u[3] ^ u[4] ^ u[5] ^ u[6]

	v.memory[0] = [4]byte{u[0], u[1], u[2], bcc0}
	v.memory[1] = [4]byte{u[3], u[4], u[5], u[6]}
	v.memory[2] = [4]byte{bcc1, 0x48, 0x00, 0x00}
	v.memory[3] = [4]byte{0xE1, 0x10, ccSize, 0x00}

	last := int(v.lastPage)
	v.memory[last-4] = [4]byte{0x00, 0x00, 0x00, 0xBD} // dynamic lock
	v.memory[last-3] = [4]byte{0x04, 0x00, 0x00, 0xFF} // CFG0: AUTH0 disabled
	v.memory[last-2] = [4]byte{0x00, 0x05, 0x00, 0x00} // CFG1
	v.memory[last-1] = [4]byte{0xFF, 0xFF, 0xFF, 0xFF} // PWD
	v.memory[last] = [4]byte{0x00, 0x00, 0x00, 0x00}   // PACK
}

// Init implements the Transceiver contract.
func (v *VirtualNTAG) Init() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inited = true
	return nil
}

// Deinit implements the Transceiver contract. The field goes off, so the
// tag returns to IDLE.
func (v *VirtualNTAG) Deinit() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inited = false
	v.state = stateIdle
	return nil
}

// Transceive implements the Transceiver contract. Replies longer than
// capacity are truncated.
func (v *VirtualNTAG) Transceive(request []byte, capacity int) ([]byte, error) {
	resp, err := v.Exchange(request)
	if err != nil {
		return nil, err
	}
	if len(resp) > capacity {
		resp = resp[:capacity]
	}
	return resp, nil
}

// Exchange processes one request frame as received over RF and returns the
// tag's reply, or ErrNoResponse when the tag stays silent.
func (v *VirtualNTAG) Exchange(request []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.exchanges++
	if len(request) == 0 || !v.present {
		return nil, ErrNoResponse
	}
	cmd := request[0]
	v.calls[cmd]++

	fault := v.takeFault(cmd)
	if fault == FaultTimeout {
		return nil, ErrNoResponse
	}

	resp := v.process(request, fault)
	if resp == nil {
		return nil, ErrNoResponse
	}
	return applyFault(resp, fault), nil
}

func (v *VirtualNTAG) takeFault(cmd byte) Fault {
	f, ok := v.faults[cmd]
	if !ok {
		return FaultNone
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(v.faults, cmd)
		}
	}
	return f.fault
}

func applyFault(resp []byte, fault Fault) []byte {
	switch fault {
	case FaultCorruptCRC:
		if len(resp) >= 3 {
			resp[len(resp)-1] ^= 0x01
		}
	case FaultCorruptBCC:
		if len(resp) == 5 {
			resp[4] ^= 0x01
		}
	case FaultNAK:
		return []byte{tagNAK}
	case FaultShortReply:
		if len(resp) > 0 {
			return resp[:len(resp)-1]
		}
	case FaultNone, FaultTimeout, FaultWrongSAK, FaultWrongATQA:
	}
	return resp
}

// process handles one command. A nil reply means silence.
//
//nolint:gocyclo,cyclop,revive // command dispatch
func (v *VirtualNTAG) process(req []byte, fault Fault) []byte {
	cmd := req[0]

	// short frames
	if len(req) == 1 && (cmd == CmdREQA || cmd == CmdWUPA) {
		if cmd == CmdREQA && v.state == stateHalt {
			return nil
		}
		v.state = stateReady1
		if fault == FaultWrongATQA {
			return []byte{0x04, 0x00}
		}
		return []byte{0x44, 0x00}
	}

	// anticollision and select
	if cmd == CmdCL1 || cmd == CmdCL2 {
		return v.processCascade(req, fault)
	}

	// every other command carries CRC_A
	if len(req) < 3 || !frame.CheckCRCA(req) {
		v.resetToIdle()
		return []byte{tagNAKCR}
	}
	payload := req[:len(req)-2]

	if v.compWritePage >= 0 {
		return v.finishCompWrite(payload)
	}

	if cmd == CmdHLTA {
		if len(payload) == 2 && payload[1] == 0x00 {
			v.state = stateHalt
		}
		return nil
	}

	if v.state != stateActive && v.state != stateAuthenticated {
		return nil
	}

	switch cmd {
	case CmdGetVersion:
		return frame.AppendCRCA(append([]byte(nil), v.version[:]...))
	case CmdRead:
		return v.processRead(payload)
	case CmdFastRead:
		return v.processFastRead(payload)
	case CmdWrite:
		return v.processWrite(payload)
	case CmdCompWrite:
		return v.processCompWrite(payload)
	case CmdReadCnt:
		return v.processReadCounter(payload)
	case CmdReadSig:
		if len(payload) != 2 || payload[1] != 0x00 {
			return []byte{tagNAK}
		}
		return frame.AppendCRCA(append([]byte(nil), v.signature[:]...))
	case CmdPwdAuth:
		return v.processPwdAuth(payload)
	default:
		return []byte{tagNAK}
	}
}

func (v *VirtualNTAG) processCascade(req []byte, fault Fault) []byte {
	level1 := req[0] == CmdCL1
	want := stateReady1
	if !level1 {
		want = stateReady2
	}
	if v.state != want {
		return nil
	}

	chunk := v.cascadeChunk(level1)
	switch {
	case len(req) == 2 && req[1] == 0x20:
		return append(chunk[:], chunk[0]^chunk[1]^chunk[2]^chunk[3])
	case len(req) == 9 && req[1] == 0x70:
		if !frame.CheckCRCA(req) || !bytes.Equal(req[2:7], append(chunk[:], frame.BCC(chunk[:]))) {
			v.resetToIdle()
			return nil
		}
		sak := byte(0x04)
		if level1 {
			v.state = stateReady2
		} else {
			sak = 0x00
			v.state = stateActive
			v.counterPending = true
		}
		if fault == FaultWrongSAK {
			sak = 0x20
		}
		return []byte{sak}
	default:
		return nil
	}
}

func (v *VirtualNTAG) cascadeChunk(level1 bool) [4]byte {
	if level1 {
		return [4]byte{0x88, v.uid[0], v.uid[1], v.uid[2]}
	}
	return [4]byte{v.uid[3], v.uid[4], v.uid[5], v.uid[6]}
}

func (v *VirtualNTAG) resetToIdle() {
	if v.state == stateHalt {
		return
	}
	v.state = stateIdle
}

func (v *VirtualNTAG) cfg0() [4]byte { return v.memory[int(v.lastPage)-3] }
func (v *VirtualNTAG) cfg1() [4]byte { return v.memory[int(v.lastPage)-2] }

// protected reports whether page needs authentication for the access.
func (v *VirtualNTAG) protected(page int, write bool) bool {
	if v.state == stateAuthenticated {
		return false
	}
	if page < int(v.cfg0()[3]) {
		return false
	}
	if write {
		return true
	}
	return v.cfg1()[0]&0x80 != 0
}

// readPage returns a page as seen over RF: PWD and PACK read as zeros.
func (v *VirtualNTAG) readPage(page int) [4]byte {
	if page >= int(v.lastPage)-1 {
		return [4]byte{}
	}
	return v.memory[page]
}

func (v *VirtualNTAG) countRead() {
	if v.counterPending && v.cfg1()[0]&0x10 != 0 && v.counter < 0xFFFFFF {
		v.counter++
	}
	v.counterPending = false
}

func (v *VirtualNTAG) processRead(payload []byte) []byte {
	if len(payload) != 2 || int(payload[1]) > int(v.lastPage) {
		return []byte{tagNAK}
	}
	start := int(payload[1])
	if v.protected(start, false) {
		return []byte{tagNAK}
	}
	v.countRead()

	out := make([]byte, 0, 18)
	pages := int(v.lastPage) + 1
	for i := range 4 {
		p := v.readPage((start + i) % pages)
		out = append(out, p[:]...)
	}
	return frame.AppendCRCA(out)
}

func (v *VirtualNTAG) processFastRead(payload []byte) []byte {
	if len(payload) != 3 {
		return []byte{tagNAK}
	}
	start, stop := int(payload[1]), int(payload[2])
	if stop < start || stop > int(v.lastPage) || v.protected(stop, false) {
		return []byte{tagNAK}
	}
	v.countRead()

	out := make([]byte, 0, (stop-start+1)*4+2)
	for p := start; p <= stop; p++ {
		page := v.readPage(p)
		out = append(out, page[:]...)
	}
	return frame.AppendCRCA(out)
}

func (v *VirtualNTAG) processWrite(payload []byte) []byte {
	if len(payload) != 6 {
		return []byte{tagNAK}
	}
	var data [4]byte
	copy(data[:], payload[2:6])
	if !v.writePage(int(payload[1]), data) {
		return []byte{tagNAK}
	}
	return []byte{tagACK}
}

func (v *VirtualNTAG) writePage(page int, data [4]byte) bool {
	last := int(v.lastPage)
	if page < 2 || page > last || v.protected(page, true) {
		return false
	}
	if v.cfg1()[0]&0x40 != 0 && (page == last-3 || page == last-2) {
		return false
	}

	switch page {
	case 2:
		// lock bytes are OTP, the first two bytes are ignored
		v.memory[2][2] |= data[2]
		v.memory[2][3] |= data[3]
	case 3:
		for i := range data {
			v.memory[3][i] |= data[i]
		}
	default:
		v.memory[page] = data
	}
	return true
}

func (v *VirtualNTAG) processCompWrite(payload []byte) []byte {
	if len(payload) != 2 {
		return []byte{tagNAK}
	}
	page := int(payload[1])
	if page < 2 || page > int(v.lastPage) {
		return []byte{tagNAK}
	}
	v.compWritePage = page
	return []byte{tagACK}
}

func (v *VirtualNTAG) finishCompWrite(payload []byte) []byte {
	page := v.compWritePage
	v.compWritePage = -1
	if len(payload) != 16 {
		return []byte{tagNAK}
	}
	var data [4]byte
	copy(data[:], payload[:4])
	if !v.writePage(page, data) {
		return []byte{tagNAK}
	}
	return []byte{tagACK}
}

func (v *VirtualNTAG) processReadCounter(payload []byte) []byte {
	if len(payload) != 2 || payload[1] != 0x02 {
		return []byte{tagNAK}
	}
	if v.cfg1()[0]&0x10 == 0 {
		return []byte{tagNAK}
	}
	if v.cfg1()[0]&0x08 != 0 && v.state != stateAuthenticated {
		return []byte{tagNAK}
	}
	c := v.counter
	return frame.AppendCRCA([]byte{byte(c), byte(c >> 8), byte(c >> 16)})
}

func (v *VirtualNTAG) processPwdAuth(payload []byte) []byte {
	if len(payload) != 5 {
		return []byte{tagNAK}
	}
	pwd := v.memory[int(v.lastPage)-1]
	if !bytes.Equal(payload[1:5], pwd[:]) {
		v.resetToIdle()
		return []byte{tagNAK}
	}
	v.state = stateAuthenticated
	pack := v.memory[v.lastPage]
	return frame.AppendCRCA([]byte{pack[0], pack[1]})
}

// Test helpers

// UID returns the 7-byte UID.
func (v *VirtualNTAG) UID() []byte {
	return append([]byte(nil), v.uid[:]...)
}

// LastPage returns the index of the PACK page.
func (v *VirtualNTAG) LastPage() uint8 {
	return v.lastPage
}

// Page returns the stored content of page, including PWD and PACK.
func (v *VirtualNTAG) Page(page int) [4]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.memory[page]
}

// SetPage stores data at page, bypassing every access rule.
func (v *VirtualNTAG) SetPage(page int, data [4]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.memory[page] = data
}

// SetCounter sets the NFC counter value.
func (v *VirtualNTAG) SetCounter(c uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counter = c & 0xFFFFFF
}

// Counter returns the NFC counter value.
func (v *VirtualNTAG) Counter() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counter
}

// Signature returns the originality signature the tag reports.
func (v *VirtualNTAG) Signature() [32]byte {
	return v.signature
}

// SetStorageSize overrides the storage size code reported by GET_VERSION.
func (v *VirtualNTAG) SetStorageSize(code byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version[6] = code
}

// InjectFault makes the next count replies to cmd misbehave. A negative
// count keeps the fault until ClearFaults.
func (v *VirtualNTAG) InjectFault(cmd byte, fault Fault, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if fault == FaultNone || count == 0 {
		delete(v.faults, cmd)
		return
	}
	v.faults[cmd] = &injectedFault{fault: fault, remaining: count}
}

// ClearFaults removes every injected fault.
func (v *VirtualNTAG) ClearFaults() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.faults = make(map[byte]*injectedFault)
}

// Remove takes the tag out of the field.
func (v *VirtualNTAG) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = false
	v.state = stateIdle
}

// Insert puts the tag back into the field, in IDLE state.
func (v *VirtualNTAG) Insert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = true
	v.state = stateIdle
}

// Present reports whether the tag is in the field.
func (v *VirtualNTAG) Present() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// Initialized reports whether Init was called without a later Deinit.
func (v *VirtualNTAG) Initialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inited
}

// Halted reports whether the tag is in HALT state.
func (v *VirtualNTAG) Halted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == stateHalt
}

// CallCount returns how many requests started with cmd.
func (v *VirtualNTAG) CallCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[cmd]
}

// Exchanges returns the total number of requests received.
func (v *VirtualNTAG) Exchanges() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exchanges
}

// String describes the tag for test failure messages.
func (v *VirtualNTAG) String() string {
	return fmt.Sprintf("%s %X", v.Type, v.uid[:])
}
