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
	"slices"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/ZaparooProject/go-ntag21x/transport/pn532"
)

var errNoSerialPort = errors.New("no USB serial port found")

// knownBridges are the USB-serial chips found on PN532 boards, as VID:PID.
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var readerKeywords = []string{"pn532", "nfc", "rfid", "13.56"}

// openLink opens the link to the PN532 described by cfg.
func openLink(cfg config) (pn532.Link, error) {
	path, kind := cfg.device, cfg.transport
	if path == "" {
		if kind != "auto" && kind != "uart" {
			return nil, fmt.Errorf("%w: -device is required for %s", errUsage, kind)
		}
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return nil, fmt.Errorf("enumerate serial ports: %w", err)
		}
		if path, err = pickPort(ports); err != nil {
			return nil, err
		}
		kind = "uart"
	}
	if kind == "auto" {
		kind = guessTransport(path)
	}

	var (
		link pn532.Link
		err  error
	)
	switch kind {
	case "i2c":
		link, err = pn532.NewI2C(path)
	case "spi":
		link, err = pn532.NewSPI(path)
	default:
		link, err = pn532.NewUART(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s link: %w", kind, err)
	}
	return link, nil
}

// guessTransport picks the link type from a device path.
func guessTransport(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "i2c"):
		return "i2c"
	case strings.Contains(lower, "spi"):
		return "spi"
	default:
		return "uart"
	}
}

// pickPort returns the USB serial port most likely to be a PN532: a known
// bridge chip or a reader product string first, then the first USB port.
func pickPort(ports []*enumerator.PortDetails) (string, error) {
	var fallback string
	for _, port := range ports {
		if port == nil || !port.IsUSB {
			continue
		}
		if isLikelyReader(port) {
			return port.Name, nil
		}
		if fallback == "" {
			fallback = port.Name
		}
	}
	if fallback == "" {
		return "", errNoSerialPort
	}
	return fallback, nil
}

func isLikelyReader(port *enumerator.PortDetails) bool {
	vidpid := strings.ToUpper(port.VID + ":" + port.PID)
	if slices.Contains(knownBridges, vidpid) {
		return true
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range readerKeywords {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}
