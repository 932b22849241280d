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
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ZaparooProject/go-ntag21x"
)

var errUsage = errors.New("usage error")

type config struct {
	// password, when set, is presented right after the tag is selected
	password      *[4]byte
	device        string
	transport     string
	sessionLog    string
	searchDelay   time.Duration
	searchTimeout int
	pack          [2]byte
	debug         bool
}

func defaultConfig() config {
	return config{
		transport:     "auto",
		searchTimeout: 10,
		searchDelay:   ntag21x.DefaultSearchDelay,
	}
}

type fileConfig struct {
	Device        string `toml:"device"`
	Transport     string `toml:"transport"`
	SearchDelay   string `toml:"search_delay"`
	Password      string `toml:"password"`
	Pack          string `toml:"pack"`
	SessionLog    string `toml:"session_log"`
	SearchTimeout int    `toml:"search_timeout"`
	Debug         bool   `toml:"debug"`
}

// loadFileConfig applies the keys present in the TOML file at path to cfg.
func loadFileConfig(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown config key %q", errUsage, undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("transport") {
		cfg.transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("search_timeout") {
		cfg.searchTimeout = raw.SearchTimeout
	}
	if meta.IsDefined("search_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SearchDelay))
		if err != nil {
			return fmt.Errorf("parse search_delay: %w", err)
		}
		cfg.searchDelay = d
	}
	if meta.IsDefined("session_log") {
		cfg.sessionLog = strings.TrimSpace(raw.SessionLog)
	}
	if meta.IsDefined("debug") {
		cfg.debug = raw.Debug
	}
	if meta.IsDefined("password") {
		b, err := parseHex(raw.Password, 4)
		if err != nil {
			return fmt.Errorf("parse password: %w", err)
		}
		cfg.password = (*[4]byte)(b)
	}
	if meta.IsDefined("pack") {
		b, err := parseHex(raw.Pack, 2)
		if err != nil {
			return fmt.Errorf("parse pack: %w", err)
		}
		cfg.pack = [2]byte(b)
	}
	return nil
}

// parseArgs builds the configuration from defaults, the optional config
// file and the flags, in that order, and returns the remaining arguments.
func parseArgs(args []string, stderr io.Writer) (config, []string, error) {
	fs := flag.NewFlagSet("ntagtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	device := fs.String("device", "", "Device path (first USB serial port if empty)")
	transport := fs.String("transport", "", "Link type: uart, spi, i2c or auto")
	configPath := fs.String("config", "", "TOML configuration file")
	debug := fs.Bool("debug", false, "Enable debug output")
	sessionLog := fs.String("session-log", "", "Directory for a timestamped session log file")
	timeout := fs.Int("timeout", 0, "Search retries before giving up, negative waits forever")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: ntagtool [flags] <command> [args]")
		fs.PrintDefaults()
		_, _ = fmt.Fprintln(stderr, "\ncommands:")
		for _, cmd := range commands {
			_, _ = fmt.Fprintf(stderr, "  %-18s %s\n", cmd.name, cmd.usage)
		}
		_, _ = fmt.Fprintf(stderr, "  %-18s %s\n", "watch", "report tags as they come and go")
	}

	if err := fs.Parse(args); err != nil {
		return config{}, nil, err //nolint:wrapcheck // flag.ErrHelp is checked by the caller
	}

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadFileConfig(*configPath, &cfg); err != nil {
			return config{}, nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.device = *device
		case "transport":
			cfg.transport = strings.ToLower(*transport)
		case "debug":
			cfg.debug = *debug
		case "session-log":
			cfg.sessionLog = *sessionLog
		case "timeout":
			cfg.searchTimeout = *timeout
		}
	})

	switch cfg.transport {
	case "auto", "uart", "spi", "i2c":
	default:
		return config{}, nil, fmt.Errorf("%w: unknown transport %q", errUsage, cfg.transport)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return config{}, nil, fmt.Errorf("%w: missing command", errUsage)
	}
	return cfg, fs.Args(), nil
}

// parseHex decodes s, spaces and colons allowed, into exactly n bytes.
func parseHex(s string, n int) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(strings.TrimSpace(s))
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not hex", errUsage, s)
	}
	if len(b) != n {
		return nil, fmt.Errorf("%w: %q is %d bytes, want %d", errUsage, s, len(b), n)
	}
	return b, nil
}
