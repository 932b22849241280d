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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ntag21x/internal/frame"
)

// Family is the tag family reported by the ATQA.
type Family uint8

const (
	// FamilyUnknown means no tag answered, or the ATQA was not recognized.
	FamilyUnknown Family = iota
	// FamilyNTAG21x is the NTAG213/215/216 family (ATQA 44 00).
	FamilyNTAG21x
)

func (f Family) String() string {
	switch f {
	case FamilyNTAG21x:
		return "NTAG213/5/6"
	case FamilyUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// State tracks how far the session has progressed with the tag in the field.
type State uint8

const (
	StateUninitialized State = iota
	StateInitialized
	// StateReady follows a successful REQA or WUPA.
	StateReady
	StateSelectedCL1
	StateSelected
	StateAuthenticated
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateInitialized:   "initialized",
	StateReady:         "ready",
	StateSelectedCL1:   "selected (CL1)",
	StateSelected:      "selected",
	StateAuthenticated: "authenticated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Session drives one NTAG21x tag through a Transceiver.
//
// A Session is not safe for concurrent use: the caller must serialize
// access, typically one session per reader driven by one goroutine.
type Session struct {
	transceiver Transceiver
	delay       func(time.Duration)
	logger      Logger
	searchDelay time.Duration
	family      Family
	state       State
	lastPage    uint8
	initialized bool
}

// New creates a session on top of t. Nothing is exchanged until Init.
func New(t Transceiver, opts ...Option) *Session {
	s := &Session{
		transceiver: t,
		delay:       time.Sleep,
		logger:      DefaultLogger(),
		searchDelay: DefaultSearchDelay,
		lastPage:    UnknownLastPage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init checks the collaborators and initializes the transceiver. Missing
// collaborators are reported as ErrConfiguration.
func (s *Session) Init() error {
	switch {
	case s.transceiver == nil:
		return fmt.Errorf("%w: transceiver is nil", ErrConfiguration)
	case s.delay == nil:
		return fmt.Errorf("%w: delay function is nil", ErrConfiguration)
	case s.logger == nil:
		return fmt.Errorf("%w: logger is nil", ErrConfiguration)
	}

	if err := s.transceiver.Init(); err != nil {
		s.logger.Debugf("ntag21x: transceiver init failed: %v", err)
		return transportError("init", err)
	}

	s.family = FamilyUnknown
	s.lastPage = UnknownLastPage
	s.initialized = true
	s.state = StateInitialized
	return nil
}

// Deinit releases the transceiver. The session can be initialized again.
func (s *Session) Deinit() error {
	if !s.initialized {
		return &CommandError{Command: "deinit", Err: ErrNotInitialized}
	}
	if err := s.transceiver.Deinit(); err != nil {
		s.logger.Debugf("ntag21x: transceiver deinit failed: %v", err)
		return transportError("deinit", err)
	}
	s.initialized = false
	s.state = StateUninitialized
	return nil
}

// Initialized reports whether Init succeeded and Deinit was not called since.
func (s *Session) Initialized() bool {
	return s.initialized
}

// Family returns the family classified by the last Request or WakeUp.
func (s *Session) Family() Family {
	return s.family
}

// State returns the tracked protocol state.
func (s *Session) State() State {
	return s.state
}

// LastPage returns the resolved last page, or UnknownLastPage.
func (s *Session) LastPage() uint8 {
	return s.lastPage
}

// Variant returns the variant matching the resolved last page.
func (s *Session) Variant() Variant {
	switch s.lastPage {
	case VariantNTAG213.LastPage():
		return VariantNTAG213
	case VariantNTAG215.LastPage():
		return VariantNTAG215
	case VariantNTAG216.LastPage():
		return VariantNTAG216
	default:
		return VariantUnknown
	}
}

// Layout returns the system page layout of the resolved variant.
func (s *Session) Layout() (Layout, error) {
	if s.lastPage == UnknownLastPage {
		return Layout{}, ErrLastPageUnknown
	}
	return LayoutFor(s.lastPage), nil
}

func (s *Session) setLastPage(v Variant) {
	s.lastPage = v.LastPage()
}

func (s *Session) checkInitialized(command string) error {
	if !s.initialized {
		return &CommandError{Command: command, Err: ErrNotInitialized}
	}
	return nil
}

// relativePage resolves a page addressed relative to the last page.
func (s *Session) relativePage(command string, offset uint8) (uint8, error) {
	if err := s.checkInitialized(command); err != nil {
		return 0, err
	}
	if s.lastPage == UnknownLastPage {
		return 0, &CommandError{Command: command, Err: ErrLastPageUnknown}
	}
	return s.lastPage - offset, nil
}

// exchange sends request and checks that exactly want bytes came back.
func (s *Session) exchange(command string, request []byte, want int) ([]byte, error) {
	if err := s.checkInitialized(command); err != nil {
		return nil, err
	}

	s.logger.Debugf("ntag21x: %s -> % X", command, request)
	resp, err := s.transceiver.Transceive(request, want)
	if err != nil {
		s.logger.Debugf("ntag21x: %s failed: %v", command, err)
		return nil, transportError(command, err)
	}
	s.logger.Debugf("ntag21x: %s <- % X", command, resp)

	if len(resp) != want {
		return nil, newCommandError(command, ErrFraming, "got %d bytes, want %d", len(resp), want)
	}
	return resp, nil
}

// exchangeCRC appends CRC_A to payload, exchanges it and verifies the CRC_A
// trailing the reply. The returned slice excludes the CRC bytes.
func (s *Session) exchangeCRC(command string, payload []byte, want int) ([]byte, error) {
	resp, err := s.exchange(command, frame.AppendCRCA(payload), want+2)
	if err != nil {
		return nil, err
	}
	if !frame.CheckCRCA(resp) {
		return nil, newCommandError(command, ErrIntegrity, "reply % X", resp)
	}
	return resp[:want], nil
}

// exchangeAck appends CRC_A to payload and expects the single ACK byte.
func (s *Session) exchangeAck(command string, payload []byte) error {
	resp, err := s.exchange(command, frame.AppendCRCA(payload), 1)
	if err != nil {
		return err
	}
	if resp[0] != ack {
		return newCommandError(command, ErrAck, "got 0x%02X", resp[0])
	}
	return nil
}
