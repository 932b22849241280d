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
	"io"
	"math/rand/v2"
	"time"
)

// JitterConfig shapes how JitteryConnection hands out bytes.
type JitterConfig struct {
	MaxLatency    time.Duration
	FragmentMin   int
	Seed          uint64
	FragmentReads bool
}

// DefaultJitterConfig splits every read into random fragments, the way a
// USB-UART bridge delivers a PN532 reply, without adding latency.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		FragmentReads: true,
		FragmentMin:   1,
		Seed:          0x4E544147,
	}
}

// JitteryConnection wraps a simulator so that reads return arbitrary
// fragments of the pending bytes. Links must reassemble frames across reads.
type JitteryConnection struct {
	backend io.ReadWriter
	rng     *rand.Rand
	readBuf []byte
	config  JitterConfig
	reads   int
}

// NewJitteryConnection wraps backend.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	if config.FragmentMin < 1 {
		config.FragmentMin = 1
	}
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test jitter
	}
	return &JitteryConnection{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test jitter
		readBuf: make([]byte, 0, 512),
	}
}

// Write passes through unchanged.
func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns between FragmentMin and len(buf) buffered bytes.
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	j.reads++
	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}

	if len(j.readBuf) == 0 {
		tmp := make([]byte, 512)
		n, err := j.backend.Read(tmp)
		if err != nil || n == 0 {
			return 0, err //nolint:wrapcheck // pass-through
		}
		j.readBuf = append(j.readBuf, tmp[:n]...)
	}

	n := min(len(j.readBuf), len(buf))
	if j.config.FragmentReads && n > j.config.FragmentMin {
		n = j.config.FragmentMin + j.rng.IntN(n-j.config.FragmentMin+1)
	}
	copy(buf, j.readBuf[:n])
	j.readBuf = j.readBuf[n:]
	return n, nil
}

// Reads returns the number of Read calls so far.
func (j *JitteryConnection) Reads() int {
	return j.reads
}
