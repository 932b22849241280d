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
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	virt "github.com/ZaparooProject/go-ntag21x/internal/testing"
	"github.com/ZaparooProject/go-ntag21x/ndef"
	"github.com/ZaparooProject/go-ntag21x/polling"
)

// syncBuffer is a bytes.Buffer shared by the watch goroutine and the test.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastPolling() *polling.Config {
	return &polling.Config{
		PollInterval:   5 * time.Millisecond,
		RemovalTimeout: 30 * time.Millisecond,
	}
}

func startWatch(t *testing.T, tag *virt.VirtualNTAG) (*syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()
	session := newTagSession(tag)
	require.NoError(t, session.Init())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, session, fastPolling(), out)
	}()
	return out, cancel, done
}

func TestWatch(t *testing.T) {
	t.Parallel()

	tag := virt.NewVirtualNTAG215(nil)
	setup := newTagSession(tag)
	require.NoError(t, setup.Init())
	_, err := setup.Search(0)
	require.NoError(t, err)
	require.NoError(t, ndef.WriteText(setup, "zaparoo"))
	require.NoError(t, setup.Deinit())

	out, cancel, done := startWatch(t, tag)
	contains := func(s string) func() bool {
		return func() bool { return strings.Contains(out.String(), s) }
	}
	require.Eventually(t, contains("Tag detected: UID=04abcdef123456 Type=NTAG215"), 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, contains(`text: "zaparoo"`), 2*time.Second, 5*time.Millisecond)

	tag.Remove()
	require.Eventually(t, contains("Tag removed"), 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.True(t, strings.HasPrefix(out.String(), "Waiting for tags."))
}

func TestWatch_NoText(t *testing.T) {
	t.Parallel()

	out, cancel, done := startWatch(t, virt.NewVirtualNTAG213(nil))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "  no text record")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatch_InvalidConfig(t *testing.T) {
	t.Parallel()

	session := newTagSession(virt.NewVirtualNTAG213(nil))
	require.NoError(t, session.Init())

	err := watch(context.Background(), session, &polling.Config{}, &syncBuffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start monitor")
}
