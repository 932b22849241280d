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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/ndef"
	"github.com/ZaparooProject/go-ntag21x/polling"
)

type tagEvent struct {
	tag     ntag21x.Tag
	removed bool
}

// watch reports tags as they enter and leave the field until ctx is done.
// The session must be initialized.
func watch(ctx context.Context, session *ntag21x.Session, pollConfig *polling.Config, out io.Writer) error {
	events := make(chan tagEvent, 16)
	send := func(ev tagEvent) {
		select {
		case events <- ev:
		default:
		}
	}
	monitor := polling.NewMonitor(session, pollConfig, polling.Callbacks{
		OnTagDetected: func(tag ntag21x.Tag) { send(tagEvent{tag: tag}) },
		OnTagRemoved:  func() { send(tagEvent{removed: true}) },
	})
	monitor.SetRecoverer(polling.NewReinitRecoverer(session, 0, 0))

	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer monitor.Stop()

	_, _ = fmt.Fprintln(out, "Waiting for tags. Press Ctrl+C to stop...")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // cancellation is the normal exit
		case <-monitor.Done():
			if err := monitor.Err(); err != nil {
				return fmt.Errorf("monitor stopped: %w", err)
			}
			return nil
		case ev := <-events:
			if ev.removed {
				_, _ = fmt.Fprintln(out, "Tag removed")
				continue
			}
			_, _ = fmt.Fprintf(out, "Tag detected: UID=%s Type=%s\n", ev.tag.UIDString(), ev.tag.Variant)
			reportText(ctx, monitor, out)
		}
	}
}

func reportText(ctx context.Context, monitor *polling.Monitor, out io.Writer) {
	var text string
	err := monitor.Do(ctx, func(s *ntag21x.Session) error {
		var err error
		text, err = ndef.ReadText(s)
		return err
	})
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(out, "  text: %q\n", text)
	case errors.Is(err, ndef.ErrNoMessage), errors.Is(err, ndef.ErrEmptyMessage), errors.Is(err, ndef.ErrNoTextRecord):
		_, _ = fmt.Fprintln(out, "  no text record")
	default:
		_, _ = fmt.Fprintf(out, "  read failed: %v\n", err)
	}
}
