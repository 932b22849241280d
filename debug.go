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
	"fmt"
	"os"
	"time"
)

// debugEnabled controls whether debug logging goes to the console
var debugEnabled = false

func init() {
	if os.Getenv("NTAG21X_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf prints debug information.
// Always writes to the session log file (if initialized) with a timestamp.
// Only prints to console when debug mode is enabled.
func Debugf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}

	if debugEnabled {
		_, _ = fmt.Printf("DEBUG: %s\n", message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// Logger is the debug sink of a Session. It only ever receives diagnostics;
// nothing it does affects control flow.
type Logger interface {
	Debugf(format string, args ...any)
}

// LoggerFunc adapts a plain function to Logger.
type LoggerFunc func(format string, args ...any)

// Debugf implements Logger
func (f LoggerFunc) Debugf(format string, args ...any) {
	f(format, args...)
}

// DefaultLogger routes session diagnostics to the package Debugf.
func DefaultLogger() Logger {
	return LoggerFunc(Debugf)
}

// NopLogger drops everything.
func NopLogger() Logger {
	return LoggerFunc(func(string, ...any) {})
}
