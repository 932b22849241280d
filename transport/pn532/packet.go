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
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

const (
	// maxFrameSize is the longest normal information frame.
	maxFrameSize = frame.MaxFrameDataLength + frame.FrameOverhead
	// maxNACKRetries bounds how often a corrupted reply is requested again.
	maxNACKRetries = 3
)

const readyPollInterval = time.Millisecond

// txConn is a half or full duplex transaction, implemented by spi.Conn and
// *i2c.Dev.
type txConn interface {
	Tx(w, r []byte) error
}

// packetIO is the transaction level of the SPI and I2C links. Unlike UART
// these buses have no byte stream: the host polls a ready flag and then
// clocks out a whole buffer.
type packetIO interface {
	writeFrame(data []byte) error
	ready() (bool, error)
	read(n int) ([]byte, error)
}

// packetLink implements Link over a packetIO. The bus is reopened on the
// first command after Close when an opener is set.
type packetLink struct {
	dev    packetIO
	closer io.Closer
	open   func() (packetIO, io.Closer, error)
	name   string
	mu     syncutil.Mutex
}

// SendCommand implements Link
func (l *packetLink) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	if l.dev == nil {
		if l.open == nil {
			return nil, io.ErrClosedPipe
		}
		dev, closer, err := l.open()
		if err != nil {
			return nil, err
		}
		l.dev, l.closer = dev, closer
	}
	return exchange(ctx, l.dev, cmd, args)
}

// Close releases the bus.
func (l *packetLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	closer := l.closer
	l.dev, l.closer = nil, nil
	if closer == nil {
		return nil
	}
	if err := closer.Close(); err != nil {
		return fmt.Errorf("close %s: %w", l.name, err)
	}
	return nil
}

func (l *packetLink) String() string {
	return l.name
}

// exchange runs one command: frame out, ACK in, reply in. A reply with a
// bad checksum is requested again with a NACK.
func exchange(ctx context.Context, dev packetIO, cmd byte, args []byte) ([]byte, error) {
	req, err := frame.BuildHostFrame(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}

	// a reply left over from an aborted command would be taken for the ACK
	if pending, err := dev.ready(); err != nil {
		return nil, err
	} else if pending {
		if _, err := dev.read(maxFrameSize); err != nil {
			return nil, err
		}
	}

	if err := dev.writeFrame(req); err != nil {
		return nil, err
	}
	if err := waitReady(ctx, dev); err != nil {
		return nil, fmt.Errorf("wait for ACK: %w", err)
	}
	ack, err := dev.read(len(frame.AckFrame))
	if err != nil {
		return nil, err
	}
	switch {
	case frame.IsNack(ack):
		return nil, ErrNACKReceived
	case !frame.IsAck(ack):
		return nil, fmt.Errorf("%w: got % X", ErrNoACK, ack)
	}

	for attempt := 0; ; attempt++ {
		if err := waitReady(ctx, dev); err != nil {
			return nil, fmt.Errorf("wait for response: %w", err)
		}
		resp, err := dev.read(maxFrameSize)
		if err != nil {
			return nil, err
		}
		data, err := frame.ParseResponse(resp, cmd)
		if isChecksumError(err) && attempt < maxNACKRetries {
			if err := dev.writeFrame(frame.NackFrame); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		return data, nil
	}
}

// waitReady polls the ready flag until it is set or ctx expires.
func waitReady(ctx context.Context, dev packetIO) error {
	for {
		ok, err := dev.ready()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := sleepCtx(ctx, readyPollInterval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrNotReady, err)
			}
			return err
		}
	}
}

func isChecksumError(err error) bool {
	return errors.Is(err, frame.ErrDataChecksum) || errors.Is(err, frame.ErrLengthChecksum)
}
