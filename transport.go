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
	"errors"
	"time"

	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// Transceiver performs the byte exchange with the tag. It can be implemented
// by a reader front end (see transport/pn532) or a test double.
type Transceiver interface {
	// Init prepares the physical channel. It is called once per session.
	Init() error

	// Deinit releases the physical channel.
	Deinit() error

	// Transceive sends request to the tag and returns its reply, at most
	// capacity bytes long. A reply of a different length than the command
	// expects is a framing error in the codec, not in the transceiver.
	Transceive(request []byte, capacity int) ([]byte, error)
}

// ErrMockNotConnected is returned by MockTransport after Deinit.
var ErrMockNotConnected = errors.New("mock transport not connected")

// MockTransport provides a scripted Transceiver for testing. Replies are
// keyed by the first byte of the request, the tag command code.
type MockTransport struct {
	responses map[byte][][]byte
	callCount map[byte]int
	errorMap  map[byte]error
	requests  [][]byte
	delay     time.Duration
	mu        syncutil.RWMutex
	connected bool
	initErr   error
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][][]byte),
		callCount: make(map[byte]int),
		errorMap:  make(map[byte]error),
	}
}

// Init implements Transceiver
func (m *MockTransport) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return m.initErr
	}
	m.connected = true
	return nil
}

// Deinit implements Transceiver
func (m *MockTransport) Deinit() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// Transceive implements Transceiver
func (m *MockTransport) Transceive(request []byte, capacity int) ([]byte, error) {
	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, ErrMockNotConnected
	}

	// Simulate hardware delay if configured
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, append([]byte(nil), request...))
	if len(request) == 0 {
		return nil, nil
	}
	cmd := request[0]
	m.callCount[cmd]++

	// Check for injected error
	if err, exists := m.errorMap[cmd]; exists {
		return nil, err
	}

	queue := m.responses[cmd]
	if len(queue) == 0 {
		return nil, nil
	}
	response := queue[0]
	// the last scripted reply repeats
	if len(queue) > 1 {
		m.responses[cmd] = queue[1:]
	}
	if len(response) > capacity {
		response = response[:capacity]
	}
	return append([]byte(nil), response...), nil
}

// Test helper methods

// SetResponse configures the reply for a command code, replacing any queue.
func (m *MockTransport) SetResponse(cmd byte, response []byte) {
	m.mu.Lock()
	m.responses[cmd] = [][]byte{response}
	m.mu.Unlock()
}

// QueueResponses configures replies returned in order for a command code.
// The last one keeps being returned once the queue is drained.
func (m *MockTransport) QueueResponses(cmd byte, responses ...[]byte) {
	m.mu.Lock()
	m.responses[cmd] = append(m.responses[cmd], responses...)
	m.mu.Unlock()
}

// SetError configures an error to be returned for a specific command
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// SetInitError makes Init fail with err.
func (m *MockTransport) SetInitError(err error) {
	m.mu.Lock()
	m.initErr = err
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate hardware response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a command was called
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.RLock()
	count := m.callCount[cmd]
	m.mu.RUnlock()
	return count
}

// TotalCalls returns the number of exchanges of any command.
func (m *MockTransport) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns a copy of every request seen so far, in order.
func (m *MockTransport) Requests() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.requests))
	for i, r := range m.requests {
		out[i] = append([]byte(nil), r...)
	}
	return out
}

// IsConnected returns true between Init and Deinit.
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected
}

// Reset clears all call counts and recorded requests
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[byte]int)
	m.requests = nil
	m.mu.Unlock()
}

// Ensure MockTransport implements Transceiver
var _ Transceiver = (*MockTransport)(nil)
