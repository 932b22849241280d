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

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/ndef"
)

// env is what a command works on: a session with the tag selected.
type env struct {
	session *ntag21x.Session
	out     io.Writer
	tag     ntag21x.Tag
}

func (e *env) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}

type command struct {
	run   func(e *env, args []string) error
	name  string
	usage string
	nargs int
}

var commands = []command{
	{name: "info", usage: "show chip, tag and configuration", run: runInfo},
	{name: "search", usage: "select a tag and show its UID", run: runSearch},
	{name: "version", usage: "show the GET_VERSION record", run: runVersion},
	{name: "read", usage: "PAGE: read one page", nargs: 1, run: runRead},
	{name: "read4", usage: "PAGE: read four pages", nargs: 1, run: runRead4},
	{name: "read-pages", usage: "START STOP: dump a page range", nargs: 2, run: runReadPages},
	{name: "write", usage: "PAGE HEX8: write one page", nargs: 2, run: runWrite},
	{name: "counter", usage: "read the NFC counter", run: runCounter},
	{name: "signature", usage: "read the originality signature", run: runSignature},
	{name: "serial", usage: "read the serial number", run: runSerial},
	{name: "auth", usage: "PWD PACK: authenticate", nargs: 2, run: runAuth},
	{name: "set-password", usage: "PWD PACK: store password and PACK", nargs: 2, run: runSetPassword},
	{name: "set-mirror", usage: "MODE BYTE PAGE: configure the ASCII mirror", nargs: 3, run: runSetMirror},
	{name: "set-mode", usage: "NORMAL|STRONG: set the modulation mode", nargs: 1, run: runSetMode},
	{name: "set-protect", usage: "PAGE: first password protected page", nargs: 1, run: runSetProtect},
	{name: "set-limit", usage: "N: failed authentication limit, 0 disables", nargs: 1, run: runSetLimit},
	{name: "set-access", usage: "NAME 0|1: set an ACCESS flag", nargs: 2, run: runSetAccess},
	{name: "set-dynamic-lock", usage: "HEX6: write the dynamic lock bytes", nargs: 1, run: runSetDynamicLock},
	{name: "set-static-lock", usage: "HEX4: write the static lock bytes", nargs: 1, run: runSetStaticLock},
	{name: "halt", usage: "put the tag in the HALT state", run: runHalt},
	{name: "wakeup", usage: "halt the tag and wake it with WUPA", run: runWakeUp},
	{name: "ndef", usage: "show the NDEF message", run: runNDEF},
	{name: "write-text", usage: "TEXT: write an NDEF text record", nargs: 1, run: runWriteText},
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func parsePage(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: page %q", errUsage, s)
	}
	return uint8(v), nil
}

func runInfo(e *env, _ []string) error {
	info := ntag21x.Info()
	e.printf("Chip:        %s (%s, driver %d)\n", info.ChipName, info.Manufacturer, info.DriverVersion)
	e.printf("UID:         %s\n", e.tag.UIDString())
	e.printf("Variant:     %s, %d bytes user memory\n", e.tag.Variant, e.tag.Variant.UserMemorySize())

	mirror, err := e.session.Mirror()
	if err != nil {
		return err
	}
	mode, err := e.session.ModulationMode()
	if err != nil {
		return err
	}
	protect, err := e.session.ProtectStartPage()
	if err != nil {
		return err
	}
	limit, err := e.session.AuthLimit()
	if err != nil {
		return err
	}
	e.printf("Mirror:      %s\n", mirror)
	e.printf("Modulation:  %s\n", mode)
	e.printf("Protection:  from page 0x%02X, auth limit %d\n", protect, limit)

	for _, a := range accessFlags {
		on, err := e.session.Access(a)
		if err != nil {
			return err
		}
		e.printf("Access:      %s=%t\n", a, on)
	}
	return nil
}

var accessFlags = []ntag21x.Access{
	ntag21x.AccessNFCCounterPasswordProtection,
	ntag21x.AccessNFCCounter,
	ntag21x.AccessUserConfProtection,
	ntag21x.AccessReadProtection,
}

func runSearch(e *env, _ []string) error {
	e.printf("UID=%s Type=%s\n", e.tag.UIDString(), e.tag.Variant)
	return nil
}

func runVersion(e *env, _ []string) error {
	v, err := e.session.GetVersion()
	if err != nil {
		return err
	}
	e.printf("vendor 0x%02X, type 0x%02X/0x%02X, version %d.%d, storage 0x%02X (%s), protocol 0x%02X\n",
		v.VendorID, v.ProductType, v.ProductSubtype, v.MajorVersion, v.MinorVersion,
		v.StorageSize, v.Variant(), v.ProtocolType)
	return nil
}

func runRead(e *env, args []string) error {
	page, err := parsePage(args[0])
	if err != nil {
		return err
	}
	data, err := e.session.ReadPage(page)
	if err != nil {
		return err
	}
	e.printf("%02X: % X\n", page, data)
	return nil
}

func runRead4(e *env, args []string) error {
	page, err := parsePage(args[0])
	if err != nil {
		return err
	}
	data, err := e.session.ReadFourPages(page)
	if err != nil {
		return err
	}
	dumpPages(e, page, data[:])
	return nil
}

func runReadPages(e *env, args []string) error {
	start, err := parsePage(args[0])
	if err != nil {
		return err
	}
	stop, err := parsePage(args[1])
	if err != nil {
		return err
	}
	if stop < start {
		return fmt.Errorf("%w: stop page before start page", errUsage)
	}

	buf := make([]byte, ntag21x.MaxFastReadPages*ntag21x.PageSize)
	for first := int(start); first <= int(stop); first += ntag21x.MaxFastReadPages {
		last := min(first+ntag21x.MaxFastReadPages-1, int(stop))
		n, err := e.session.FastRead(uint8(first), uint8(last), buf)
		if err != nil {
			return err
		}
		dumpPages(e, uint8(first), buf[:n])
	}
	return nil
}

func dumpPages(e *env, first uint8, data []byte) {
	for i := 0; i+ntag21x.PageSize <= len(data); i += ntag21x.PageSize {
		e.printf("%02X: % X\n", int(first)+i/ntag21x.PageSize, data[i:i+ntag21x.PageSize])
	}
}

func runWrite(e *env, args []string) error {
	page, err := parsePage(args[0])
	if err != nil {
		return err
	}
	b, err := parseHex(args[1], ntag21x.PageSize)
	if err != nil {
		return err
	}
	if err := e.session.WritePage(page, [4]byte(b)); err != nil {
		return err
	}
	e.printf("wrote page 0x%02X\n", page)
	return nil
}

func runCounter(e *env, _ []string) error {
	count, err := e.session.ReadCounter()
	if err != nil {
		return err
	}
	e.printf("NFC counter: %d\n", count)
	return nil
}

func runSignature(e *env, _ []string) error {
	sig, err := e.session.ReadSignature()
	if err != nil {
		return err
	}
	e.printf("signature: %X\n", sig)
	return nil
}

func runSerial(e *env, _ []string) error {
	sn, err := e.session.SerialNumber()
	if err != nil {
		return err
	}
	e.printf("serial: % X\n", sn)
	return nil
}

func parseCredentials(pwdArg, packArg string) (pwd [4]byte, pack [2]byte, err error) {
	p, err := parseHex(pwdArg, 4)
	if err != nil {
		return pwd, pack, err
	}
	k, err := parseHex(packArg, 2)
	if err != nil {
		return pwd, pack, err
	}
	return [4]byte(p), [2]byte(k), nil
}

func runAuth(e *env, args []string) error {
	pwd, pack, err := parseCredentials(args[0], args[1])
	if err != nil {
		return err
	}
	if err := e.session.Authenticate(pwd, pack); err != nil {
		return err
	}
	e.printf("authenticated\n")
	return nil
}

func runSetPassword(e *env, args []string) error {
	pwd, pack, err := parseCredentials(args[0], args[1])
	if err != nil {
		return err
	}
	if err := e.session.SetPassword(pwd); err != nil {
		return err
	}
	if err := e.session.SetPack(pack); err != nil {
		return err
	}
	e.printf("password and PACK stored\n")
	return nil
}

var mirrorModes = map[string]ntag21x.Mirror{
	"none":        ntag21x.MirrorNone,
	"uid":         ntag21x.MirrorUID,
	"counter":     ntag21x.MirrorCounter,
	"uid+counter": ntag21x.MirrorUIDCounter,
}

func runSetMirror(e *env, args []string) error {
	mode, ok := mirrorModes[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("%w: mirror mode %q, want none, uid, counter or uid+counter", errUsage, args[0])
	}
	b, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil || b > uint64(ntag21x.MirrorByte3) {
		return fmt.Errorf("%w: mirror byte %q, want 0-3", errUsage, args[1])
	}
	page, err := parsePage(args[2])
	if err != nil {
		return err
	}

	if err := e.session.SetMirror(mode); err != nil {
		return err
	}
	if err := e.session.SetMirrorByte(ntag21x.MirrorByte(b)); err != nil {
		return err
	}
	if err := e.session.SetMirrorPage(page); err != nil {
		return err
	}
	e.printf("mirror %s at page 0x%02X byte %d\n", mode, page, b)
	return nil
}

func runSetMode(e *env, args []string) error {
	var mode ntag21x.ModulationMode
	switch strings.ToUpper(args[0]) {
	case "NORMAL":
		mode = ntag21x.ModulationNormal
	case "STRONG":
		mode = ntag21x.ModulationStrong
	default:
		return fmt.Errorf("%w: mode %q, want NORMAL or STRONG", errUsage, args[0])
	}
	if err := e.session.SetModulationMode(mode); err != nil {
		return err
	}
	e.printf("modulation %s\n", mode)
	return nil
}

func runSetProtect(e *env, args []string) error {
	page, err := parsePage(args[0])
	if err != nil {
		return err
	}
	if err := e.session.SetProtectStartPage(page); err != nil {
		return err
	}
	e.printf("protection from page 0x%02X\n", page)
	return nil
}

func runSetLimit(e *env, args []string) error {
	n, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("%w: limit %q", errUsage, args[0])
	}
	if err := e.session.SetAuthLimit(uint8(n)); err != nil {
		return err
	}
	e.printf("auth limit %d\n", n)
	return nil
}

func runSetAccess(e *env, args []string) error {
	var access ntag21x.Access
	found := false
	for _, a := range accessFlags {
		if a.String() == strings.ToLower(args[0]) {
			access, found = a, true
			break
		}
	}
	if !found {
		names := make([]string, len(accessFlags))
		for i, a := range accessFlags {
			names[i] = a.String()
		}
		return fmt.Errorf("%w: access flag %q, want one of %s", errUsage, args[0], strings.Join(names, ", "))
	}
	enable, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("%w: %q is not 0 or 1", errUsage, args[1])
	}
	if err := e.session.SetAccess(access, enable); err != nil {
		return err
	}
	e.printf("%s=%t\n", access, enable)
	return nil
}

func runSetDynamicLock(e *env, args []string) error {
	b, err := parseHex(args[0], 3)
	if err != nil {
		return err
	}
	if err := e.session.SetDynamicLock([3]byte(b)); err != nil {
		return err
	}
	e.printf("dynamic lock % X\n", b)
	return nil
}

func runSetStaticLock(e *env, args []string) error {
	b, err := parseHex(args[0], 2)
	if err != nil {
		return err
	}
	if err := e.session.SetStaticLock([2]byte(b)); err != nil {
		return err
	}
	e.printf("static lock % X\n", b)
	return nil
}

func runHalt(e *env, _ []string) error {
	if err := e.session.Halt(); err != nil {
		return err
	}
	e.printf("halted\n")
	return nil
}

func runWakeUp(e *env, _ []string) error {
	if err := e.session.Halt(); err != nil {
		return err
	}
	family, err := e.session.WakeUp()
	if err != nil {
		return err
	}
	e.printf("woke up %s\n", family)
	return nil
}

func runNDEF(e *env, _ []string) error {
	msg, err := ndef.ReadMessage(e.session)
	if errors.Is(err, ndef.ErrNoMessage) || errors.Is(err, ndef.ErrEmptyMessage) {
		e.printf("no NDEF message\n")
		return nil
	}
	if err != nil {
		return err
	}
	for i, rec := range msg.Records {
		e.printf("record %d: %s\n", i, ndef.Describe(rec))
	}
	return nil
}

func runWriteText(e *env, args []string) error {
	if err := ndef.WriteText(e.session, args[0]); err != nil {
		return err
	}
	e.printf("wrote %q\n", args[0])
	return nil
}
