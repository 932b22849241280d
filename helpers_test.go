// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ntag21x

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	virt "github.com/ZaparooProject/go-ntag21x/internal/testing"
)

// delayRecorder replaces time.Sleep and records every requested pause.
type delayRecorder struct {
	hook   func(n int)
	delays []time.Duration
}

func (d *delayRecorder) delay(dur time.Duration) {
	d.delays = append(d.delays, dur)
	if d.hook != nil {
		d.hook(len(d.delays))
	}
}

func newTestSession(t *testing.T, tr Transceiver, opts ...Option) (*Session, *delayRecorder) {
	t.Helper()
	rec := &delayRecorder{}
	all := append([]Option{WithLogger(NopLogger()), WithDelay(rec.delay)}, opts...)
	s := New(tr, all...)
	require.NoError(t, s.Init())
	return s, rec
}

// selectedSession returns an initialized session with tag selected and its
// variant resolved.
func selectedSession(t *testing.T, tag *virt.VirtualNTAG) *Session {
	t.Helper()
	s, _ := newTestSession(t, tag)
	_, err := s.Search(0)
	require.NoError(t, err)
	return s
}

// mockSession returns an initialized session over a fresh MockTransport.
func mockSession(t *testing.T) (*Session, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	s, _ := newTestSession(t, mock)
	return s, mock
}

// scriptSelection queues the replies of a complete Search cycle for a tag
// with uid and capability container size ccSize.
func scriptSelection(mock *MockTransport, uid []byte, ccSize byte) {
	mock.SetResponse(cmdREQA, virt.BuildATQAResponse())
	mock.QueueResponses(cmdSelectCL1, virt.BuildAnticollisionResponse(uid, 1), virt.BuildSAKResponse(1))
	mock.QueueResponses(cmdSelectCL2, virt.BuildAnticollisionResponse(uid, 2), virt.BuildSAKResponse(2))
	mock.SetResponse(cmdRead, virt.BuildCCReadResponse(uid, ccSize))
}
