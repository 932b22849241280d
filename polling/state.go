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
	"errors"
	"time"

	ntag21x "github.com/ZaparooProject/go-ntag21x"
)

// DetectionState represents the finite state machine for tag detection
type DetectionState int

const (
	// StateIdle means no tag is present; the monitor searches.
	StateIdle DetectionState = iota
	// StateTagPresent means a tag was selected and answers presence checks.
	StateTagPresent
	// StateTagMissing means presence checks fail but the removal timeout
	// has not expired yet.
	StateTagMissing
)

func (s DetectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTagPresent:
		return "present"
	case StateTagMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// TagState tracks the tag in the field of the reader
type TagState struct {
	LastSeenTime   time.Time
	Tag            ntag21x.Tag
	DetectionState DetectionState
}

// Present reports whether a tag is considered in the field.
func (ts TagState) Present() bool {
	return ts.DetectionState != StateIdle
}

// Monitor lifecycle errors
var (
	ErrAlreadyStarted = errors.New("polling: monitor already started")
	ErrNotRunning     = errors.New("polling: monitor not running")
)

// TransitionToPresent records a successful detection or presence check.
func (ts *TagState) TransitionToPresent(tag ntag21x.Tag, now time.Time) {
	ts.DetectionState = StateTagPresent
	ts.Tag = tag
	ts.LastSeenTime = now
}

// TransitionToMissing marks a failed presence check. It reports whether
// the tag has been missing for longer than timeout.
func (ts *TagState) TransitionToMissing(now time.Time, timeout time.Duration) bool {
	ts.DetectionState = StateTagMissing
	return now.Sub(ts.LastSeenTime) >= timeout
}

// TransitionToIdle resets to idle state
func (ts *TagState) TransitionToIdle() {
	ts.DetectionState = StateIdle
	ts.Tag = ntag21x.Tag{}
	ts.LastSeenTime = time.Time{}
}
