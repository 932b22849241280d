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
	"errors"
	"fmt"
	"io"
	"strings"
)

// Error kinds. Every failure returned by a Session matches exactly one of
// these with errors.Is.
var (
	// ErrConfiguration means a required collaborator was not supplied.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotInitialized is returned by every operation before Init or after Deinit.
	ErrNotInitialized = errors.New("session not initialized")

	// Exchange errors - potentially transient
	ErrTransport = errors.New("transport failure")
	ErrFraming   = errors.New("unexpected response length")
	ErrIntegrity = errors.New("CRC_A mismatch")

	// Tag errors - not transient for the current tag
	ErrAck                = errors.New("acknowledgement error")
	ErrSelection          = errors.New("selection error")
	ErrDataInvalid        = errors.New("data invalid")
	ErrCredentialMismatch = errors.New("PACK mismatch")

	// ErrInvalidArgument is returned before any exchange takes place.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Derived errors. They match their own sentinel and the kind they refine.
var (
	ErrInvalidType     = fmt.Errorf("%w: tag type not supported", ErrDataInvalid)
	ErrLastPageUnknown = fmt.Errorf("%w: last page not resolved", ErrDataInvalid)
	ErrSearchTimeout   = errors.New("search timed out")
)

// CommandError reports a failed tag command. Err is the error kind, Cause the
// underlying failure reported by the transceiver, if any.
type CommandError struct {
	Err     error
	Cause   error
	Command string
	Detail  string
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(e.Command)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *CommandError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func newCommandError(command string, kind error, format string, args ...any) *CommandError {
	return &CommandError{
		Command: command,
		Err:     kind,
		Detail:  fmt.Sprintf(format, args...),
	}
}

func transportError(command string, cause error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     ErrTransport,
		Cause:   cause,
	}
}

// TransportError wraps link-level errors of a Transceiver with the operation
// and port that failed.
type TransportError struct {
	Err       error  // Underlying error
	Op        string // Operation that failed
	Port      string // Port or device identifier
	Retryable bool   // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, retryable bool) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Retryable: retryable,
	}
}

// IsTransient reports whether err is worth retrying at the operation level:
// transport, framing and integrity failures. Selection, data, credential and
// argument errors are final for the current tag.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransport),
		errors.Is(err, ErrFraming),
		errors.Is(err, ErrIntegrity):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the reader is gone and the
// session should be torn down. This is distinct from IsTransient which
// indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}
