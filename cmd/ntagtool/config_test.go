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
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-ntag21x"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ntagtool.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseArgs_Defaults(t *testing.T) {
	t.Parallel()

	cfg, rest, err := parseArgs([]string{"search"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"search"}, rest)
	assert.Equal(t, "auto", cfg.transport)
	assert.Empty(t, cfg.device)
	assert.Equal(t, 10, cfg.searchTimeout)
	assert.Equal(t, ntag21x.DefaultSearchDelay, cfg.searchDelay)
	assert.Nil(t, cfg.password)
	assert.False(t, cfg.debug)
}

func TestParseArgs_Flags(t *testing.T) {
	t.Parallel()

	cfg, rest, err := parseArgs([]string{
		"-device", "/dev/i2c-1", "-transport", "I2C", "-debug", "-timeout", "-1", "-session-log", "logs",
		"read", "4",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "4"}, rest)
	assert.Equal(t, "/dev/i2c-1", cfg.device)
	assert.Equal(t, "i2c", cfg.transport)
	assert.True(t, cfg.debug)
	assert.Equal(t, -1, cfg.searchTimeout)
	assert.Equal(t, "logs", cfg.sessionLog)
}

func TestParseArgs_ConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
device = "/dev/ttyUSB0"
transport = "uart"
search_delay = "50ms"
search_timeout = 3
password = "11:22:33:44"
pack = "AABB"
session_log = "/var/log/ntagtool"
debug = true
`)
	cfg, _, err := parseArgs([]string{"-config", path, "info"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.device)
	assert.Equal(t, "uart", cfg.transport)
	assert.Equal(t, 50*time.Millisecond, cfg.searchDelay)
	assert.Equal(t, 3, cfg.searchTimeout)
	require.NotNil(t, cfg.password)
	assert.Equal(t, [4]byte{0x11, 0x22, 0x33, 0x44}, *cfg.password)
	assert.Equal(t, [2]byte{0xAA, 0xBB}, cfg.pack)
	assert.Equal(t, "/var/log/ntagtool", cfg.sessionLog)
	assert.True(t, cfg.debug)
}

func TestParseArgs_FlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "device = \"/dev/ttyUSB0\"\nsearch_timeout = 3\n")
	cfg, _, err := parseArgs([]string{
		"-config", path, "-device", "/dev/spidev0.0", "-timeout", "0", "info",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/dev/spidev0.0", cfg.device)
	assert.Equal(t, 0, cfg.searchTimeout)
	assert.Equal(t, "auto", cfg.transport, "keys missing from the file keep their defaults")
}

func TestParseArgs_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		file    string
		args    []string
	}{
		{name: "missing command", args: []string{}, wantErr: errUsage},
		{name: "help", args: []string{"-h"}, wantErr: flag.ErrHelp},
		{name: "unknown transport", args: []string{"-transport", "usb", "info"}, wantErr: errUsage},
		{name: "unknown key", file: "baud = 9600\n", wantErr: errUsage},
		{name: "short password", file: "password = \"1122\"\n", wantErr: errUsage},
		{name: "password not hex", file: "password = \"zzzzzzzz\"\n", wantErr: errUsage},
		{name: "long pack", file: "pack = \"AABBCC\"\n", wantErr: errUsage},
		{name: "unknown transport in file", file: "transport = \"can\"\n", wantErr: errUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args := tt.args
			if tt.file != "" {
				args = []string{"-config", writeConfig(t, tt.file), "info"}
			}
			_, _, err := parseArgs(args, io.Discard)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseArgs_BadFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
	}{
		{name: "bad duration", file: "search_delay = \"soon\"\n"},
		{name: "wrong type", file: "search_timeout = \"ten\"\n"},
		{name: "not toml", file: "device = \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := parseArgs([]string{"-config", writeConfig(t, tt.file), "info"}, io.Discard)
			require.Error(t, err)
		})
	}

	_, _, err := parseArgs([]string{"-config", filepath.Join(t.TempDir(), "missing.toml"), "info"}, io.Discard)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    []byte
		n       int
		wantErr bool
	}{
		{name: "plain", in: "DEADBEEF", n: 4, want: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{name: "lower case", in: "deadbeef", n: 4, want: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{name: "colons", in: "de:ad", n: 2, want: []byte{0xDE, 0xAD}},
		{name: "spaces", in: " 01 02 03 ", n: 3, want: []byte{0x01, 0x02, 0x03}},
		{name: "odd length", in: "ABC", n: 2, wantErr: true},
		{name: "wrong length", in: "ABCD", n: 4, wantErr: true},
		{name: "not hex", in: "XYZW", n: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseHex(tt.in, tt.n)
			if tt.wantErr {
				require.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
