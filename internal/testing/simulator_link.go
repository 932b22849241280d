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
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// ErrSimulatorTimeout is returned when the simulator never completes a frame.
var ErrSimulatorTimeout = errors.New("simulator: no complete frame")

// maxPolls bounds the reads spent waiting for one frame.
const maxPolls = 256

// SimulatorLink drives a VirtualPN532 with host frames. It has the shape of
// the PN532 Link used by transport/pn532, so the transceiver can be tested
// end to end without hardware.
type SimulatorLink struct {
	sim        *VirtualPN532
	conn       io.ReadWriter
	CommandLog []CommandLogEntry
	mu         syncutil.Mutex
	closed     bool
}

// CommandLogEntry records a command sent over the link
type CommandLogEntry struct {
	Timestamp time.Time
	Args      []byte
	Cmd       byte
}

// NewSimulatorLink creates a link talking directly to sim.
func NewSimulatorLink(sim *VirtualPN532) *SimulatorLink {
	return &SimulatorLink{sim: sim, conn: sim}
}

// NewJitterySimulatorLink creates a link whose reads are fragmented.
func NewJitterySimulatorLink(sim *VirtualPN532, config JitterConfig) *SimulatorLink {
	return &SimulatorLink{sim: sim, conn: NewJitteryConnection(sim, config)}
}

// SendCommand sends cmd with args and returns the reply payload following
// the response code.
func (l *SimulatorLink) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, io.ErrClosedPipe
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}

	l.CommandLog = append(l.CommandLog, CommandLogEntry{
		Cmd:       cmd,
		Args:      append([]byte(nil), args...),
		Timestamp: time.Now(),
	})

	req, err := frame.BuildHostFrame(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	if _, err := l.conn.Write(req); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	ack, err := l.readBytes(ctx, len(frame.AckFrame))
	if err != nil {
		return nil, fmt.Errorf("read ACK: %w", err)
	}
	if !frame.IsAck(ack) {
		return nil, fmt.Errorf("%w: expected ACK, got % X", frame.ErrUnexpectedResponse, ack)
	}

	resp, err := l.readFrame(ctx)
	if err != nil {
		return nil, err
	}
	data, err := frame.ParseResponse(resp, cmd)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return data, nil
}

func (l *SimulatorLink) readBytes(ctx context.Context, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for range maxPolls {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // context errors pass through
		}
		got, err := l.conn.Read(buf[:n-len(out)])
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		out = append(out, buf[:got]...)
		if len(out) == n {
			return out, nil
		}
	}
	return nil, ErrSimulatorTimeout
}

// readFrame reads until a complete PN532 frame is buffered.
func (l *SimulatorLink) readFrame(ctx context.Context) ([]byte, error) {
	var acc bytes.Buffer
	buf := make([]byte, 64)
	for range maxPolls {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // context errors pass through
		}
		n, err := l.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		acc.Write(buf[:n])

		need, err := frame.FrameLength(acc.Bytes())
		if errors.Is(err, frame.ErrIncomplete) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if acc.Len() >= need {
			return acc.Bytes()[:need], nil
		}
	}
	return nil, ErrSimulatorTimeout
}

// SendNACK asks the simulator to repeat its last response and returns it.
func (l *SimulatorLink) SendNACK(ctx context.Context, cmd byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.conn.Write(frame.NackFrame); err != nil {
		return nil, fmt.Errorf("write NACK: %w", err)
	}
	resp, err := l.readFrame(ctx)
	if err != nil {
		return nil, err
	}
	data, err := frame.ParseResponse(resp, cmd)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return data, nil
}

// Close closes the link. Further commands fail with io.ErrClosedPipe.
func (l *SimulatorLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Simulator returns the underlying VirtualPN532 for test setup.
func (l *SimulatorLink) Simulator() *VirtualPN532 {
	return l.sim
}

// CommandCount returns how many times cmd was sent.
func (l *SimulatorLink) CommandCount(cmd byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, entry := range l.CommandLog {
		if entry.Cmd == cmd {
			count++
		}
	}
	return count
}

// ClearCommandLog clears the command log.
func (l *SimulatorLink) ClearCommandLog() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.CommandLog = nil
}
