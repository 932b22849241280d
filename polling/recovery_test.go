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

package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ntag21x "github.com/ZaparooProject/go-ntag21x"
	virt "github.com/ZaparooProject/go-ntag21x/internal/testing"
)

func TestNewReinitRecoverer(t *testing.T) {
	t.Parallel()

	session := newSession(t, virt.NewVirtualNTAG213(nil))

	t.Run("WithDefaults", func(t *testing.T) {
		t.Parallel()
		r := NewReinitRecoverer(session, 0, 0)
		assert.Equal(t, 3, r.maxAttempts)
		assert.Equal(t, 500*time.Millisecond, r.backoff)
	})

	t.Run("WithCustomValues", func(t *testing.T) {
		t.Parallel()
		r := NewReinitRecoverer(session, 100*time.Millisecond, 5)
		assert.Equal(t, 5, r.maxAttempts)
		assert.Equal(t, 100*time.Millisecond, r.backoff)
	})
}

func TestReinitRecoverer_Success(t *testing.T) {
	t.Parallel()

	tag := virt.NewVirtualNTAG213(nil)
	session := newSession(t, tag)
	_, err := session.Search(0)
	require.NoError(t, err)

	r := NewReinitRecoverer(session, 10*time.Millisecond, 3)
	require.NoError(t, r.AttemptRecovery(context.Background()))

	assert.True(t, session.Initialized())
	assert.True(t, tag.Initialized())
	assert.Equal(t, ntag21x.StateInitialized, session.State())
	assert.Equal(t, ntag21x.UnknownLastPage, session.LastPage())
}

func TestReinitRecoverer_AllAttemptsFail(t *testing.T) {
	t.Parallel()

	mock := ntag21x.NewMockTransport()
	session := newSession(t, mock)
	initErr := errors.New("port vanished")
	mock.SetInitError(initErr)

	r := NewReinitRecoverer(session, time.Millisecond, 2)
	err := r.AttemptRecovery(context.Background())
	require.ErrorIs(t, err, initErr)
	require.ErrorIs(t, err, ntag21x.ErrTransport)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.False(t, session.Initialized())
}

func TestReinitRecoverer_ContextCancellation(t *testing.T) {
	t.Parallel()

	session := newSession(t, virt.NewVirtualNTAG213(nil))
	r := NewReinitRecoverer(session, 100*time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := r.AttemptRecovery(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, session.Initialized(), "nothing is torn down after cancellation")
}

func TestDetectSleep(t *testing.T) {
	t.Parallel()

	cfg := DefaultSleepRecoveryConfig()
	assert.False(t, cfg.DetectSleep(300*time.Millisecond, 250*time.Millisecond))
	assert.True(t, cfg.DetectSleep(3*time.Second, 250*time.Millisecond))

	cfg.Enabled = false
	assert.False(t, cfg.DetectSleep(time.Hour, 250*time.Millisecond))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cfg     Config
		name    string
		wantErr bool
	}{
		{name: "defaults", cfg: *DefaultConfig()},
		{name: "zero poll interval", cfg: Config{RemovalTimeout: time.Second}, wantErr: true},
		{name: "negative removal timeout", cfg: Config{PollInterval: time.Second, RemovalTimeout: -1}, wantErr: true},
		{name: "zero removal timeout", cfg: Config{PollInterval: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTagState_Transitions(t *testing.T) {
	t.Parallel()

	var ts TagState
	assert.False(t, ts.Present())
	assert.Equal(t, "idle", ts.DetectionState.String())

	now := time.Now()
	tag := ntag21x.Tag{Variant: ntag21x.VariantNTAG213}
	ts.TransitionToPresent(tag, now)
	assert.True(t, ts.Present())
	assert.Equal(t, "present", ts.DetectionState.String())

	assert.False(t, ts.TransitionToMissing(now.Add(10*time.Millisecond), 50*time.Millisecond))
	assert.True(t, ts.Present(), "a missing tag is still present until the timeout expires")
	assert.Equal(t, "missing", ts.DetectionState.String())
	assert.True(t, ts.TransitionToMissing(now.Add(50*time.Millisecond), 50*time.Millisecond))

	ts.TransitionToIdle()
	assert.Equal(t, TagState{}, ts)
	assert.Equal(t, "unknown", DetectionState(42).String())
}
