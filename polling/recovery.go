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
	"fmt"
	"time"

	ntag21x "github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// Recoverer handles reader recovery after sleep/wake or fatal errors
type Recoverer interface {
	// AttemptRecovery tries to bring the reader back.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error
}

// ReinitRecoverer recovers a session by tearing its transceiver down and
// initializing it again, up to maxAttempts times.
type ReinitRecoverer struct {
	session     *ntag21x.Session
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewReinitRecoverer creates a recoverer for session. Non-positive values
// select 500ms of backoff and 3 attempts.
func NewReinitRecoverer(session *ntag21x.Session, backoff time.Duration, maxAttempts int) *ReinitRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &ReinitRecoverer{
		session:     session,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// AttemptRecovery runs Deinit and Init until Init succeeds.
func (r *ReinitRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		// Deinit errors are expected when the link is already gone
		_ = r.session.Deinit()
		err := r.session.Init()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("polling: recovery failed after %d attempts: %w", r.maxAttempts, lastErr)
}
