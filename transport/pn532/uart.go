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

package pn532

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// uartBaudRate is the PN532 HSU default.
const uartBaudRate = 115200

// wakePreamble wakes the PN532 from power down over HSU. The chip ignores
// it when already awake.
var wakePreamble = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

const (
	// ackTimeout bounds the wait for the ACK frame.
	ackTimeout = 100 * time.Millisecond
	// idlePoll is the pause after a read that returned nothing.
	idlePoll = time.Millisecond
)

// Port is the byte stream under a UART link. serial.Port implements it.
type Port interface {
	io.ReadWriter
	Close() error
}

// drainer is implemented by ports that can wait for their output buffer
// to be sent.
type drainer interface {
	Drain() error
}

// inputResetter is implemented by ports that can drop unread input.
type inputResetter interface {
	ResetInputBuffer() error
}

// UART is a Link over a serial port.
type UART struct {
	port Port
	open func() (Port, error)
	name string
	rx   bytes.Buffer
	mu   syncutil.Mutex
}

// NewUART opens portName at 115200 8N1.
func NewUART(portName string) (*UART, error) {
	open := func() (Port, error) { return openSerial(portName) }
	port, err := open()
	if err != nil {
		return nil, err
	}
	return &UART{port: port, open: open, name: portName}, nil
}

// newUART wraps an already open port without reopen support, used by tests.
func newUART(name string, port Port) *UART {
	return &UART{port: port, name: name}
}

func openSerial(portName string) (Port, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: uartBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open UART port %s: %w", portName, err)
	}

	// 50ms works on Linux and macOS, Windows drivers need longer
	timeout := 50 * time.Millisecond
	if runtime.GOOS == "windows" {
		timeout = 100 * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set UART read timeout: %w", err)
	}
	return port, nil
}

// SendCommand implements Link
func (u *UART) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	if err := u.ensureOpen(); err != nil {
		return nil, err
	}

	req, err := frame.BuildHostFrame(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}

	u.discardInput()
	out := make([]byte, 0, len(wakePreamble)+len(req))
	out = append(out, wakePreamble...)
	out = append(out, req...)
	if err := u.write(out); err != nil {
		return nil, err
	}
	if err := u.waitAck(ctx); err != nil {
		u.rx.Reset()
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		data, err := u.readResponse(ctx, cmd)
		if isChecksumError(err) && attempt < maxNACKRetries {
			u.rx.Reset()
			if err := u.write(frame.NackFrame); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			u.rx.Reset()
			return nil, err
		}
		if err := u.write(frame.AckFrame); err != nil {
			return nil, err
		}
		return data, nil
	}
}

func (u *UART) readResponse(ctx context.Context, cmd byte) ([]byte, error) {
	resp, err := u.readFrame(ctx)
	if err != nil {
		return nil, err
	}
	data, err := frame.ParseResponse(resp, cmd)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return data, nil
}

func (u *UART) ensureOpen() error {
	if u.port != nil {
		return nil
	}
	if u.open == nil {
		return io.ErrClosedPipe
	}
	port, err := u.open()
	if err != nil {
		return err
	}
	u.port = port
	return nil
}

// discardInput drops bytes left over from an aborted command.
func (u *UART) discardInput() {
	u.rx.Reset()
	if r, ok := u.port.(inputResetter); ok {
		_ = r.ResetInputBuffer()
	}
}

func (u *UART) write(data []byte) error {
	n, err := u.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("UART write: %w", io.ErrShortWrite)
	}
	return u.drain()
}

// drain waits for the output to leave the port, retrying interrupted
// system calls.
func (u *UART) drain() error {
	d, ok := u.port.(drainer)
	if !ok {
		return nil
	}
	const maxRetries = 3
	var err error
	for attempt := range maxRetries {
		if err = d.Drain(); err == nil || !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(2 * time.Millisecond << attempt)
	}
	if err != nil {
		return fmt.Errorf("UART drain: %w", err)
	}
	return nil
}

func isInterruptedSystemCall(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") || strings.Contains(msg, "eintr")
}

// fill reads what the port has into the receive buffer. A read that
// returns nothing pauses briefly so an idle port is not spun on.
func (u *UART) fill(ctx context.Context) error {
	buf := make([]byte, 64)
	n, err := u.port.Read(buf)
	if err != nil {
		return fmt.Errorf("UART read: %w", err)
	}
	if n == 0 {
		return sleepCtx(ctx, idlePoll)
	}
	u.rx.Write(buf[:n])
	return nil
}

// waitAck consumes bytes up to and including the ACK frame. Bytes after it
// stay buffered, they are the start of the reply.
func (u *UART) waitAck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	for {
		data := u.rx.Bytes()
		if idx := bytes.Index(data, frame.AckFrame); idx >= 0 {
			u.rx.Next(idx + len(frame.AckFrame))
			return nil
		}
		if frame.IsNack(data) {
			return ErrNACKReceived
		}
		if err := u.fill(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w on %s", ErrNoACK, u.name)
			}
			return err
		}
	}
}

// readFrame returns the next complete frame from the receive buffer.
func (u *UART) readFrame(ctx context.Context) ([]byte, error) {
	for {
		need, err := frame.FrameLength(u.rx.Bytes())
		switch {
		case err == nil && u.rx.Len() >= need:
			resp := make([]byte, need)
			_, _ = u.rx.Read(resp)
			return resp, nil
		case err != nil && !errors.Is(err, frame.ErrIncomplete):
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if err := u.fill(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w on %s", ErrTimeout, u.name)
			}
			return nil, err
		}
	}
}

// Close closes the port. The next command reopens it.
func (u *UART) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rx.Reset()
	if u.port == nil {
		return nil
	}
	err := u.port.Close()
	u.port = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", u.name, err)
	}
	return nil
}

func (u *UART) String() string {
	return u.name
}
