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

package ntag21x

import (
	"time"
)

// DefaultSearchDelay is the pause between two Search attempts.
const DefaultSearchDelay = 200 * time.Millisecond

// wakeUpDelay is the pause required before WUPA.
const wakeUpDelay = time.Millisecond

// Option is a functional option for configuring a Session
type Option func(*Session)

// WithLogger sets the debug sink of the session. A nil logger makes Init
// fail with ErrConfiguration.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDelay replaces the blocking wait used before WUPA and between search
// attempts. A nil delay makes Init fail with ErrConfiguration.
func WithDelay(delay func(time.Duration)) Option {
	return func(s *Session) {
		s.delay = delay
	}
}

// WithSearchDelay sets the pause between two Search attempts
func WithSearchDelay(d time.Duration) Option {
	return func(s *Session) {
		s.searchDelay = d
	}
}
