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

// Package polling watches a reader for NTAG21x tags arriving and leaving.
package polling

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	ntag21x "github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/internal/syncutil"
)

// Callbacks are run on the monitor goroutine. They must not block for
// long and must not use the session directly; use Monitor.Do instead.
type Callbacks struct {
	OnTagDetected func(tag ntag21x.Tag)
	OnTagRemoved  func()
}

// Metrics tracks operational metrics of a Monitor
type Metrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Failed presence checks and fatal errors
	TagsDetected    int64         // Number of tags detected
	TagsRemoved     int64         // Number of tags reported removed
	Recoveries      int64         // Successful reader recoveries
	LastPollLatency time.Duration // Duration of last polling operation
}

type request struct {
	fn   func(*ntag21x.Session) error
	done chan error
}

// Monitor owns a session and polls it from a single goroutine. With no tag
// in the field it runs a one-attempt Search every poll interval; with a tag
// present it reads page 0 and compares the serial number.
type Monitor struct {
	session   *ntag21x.Session
	config    *Config
	recoverer Recoverer
	callbacks Callbacks
	requests  chan request
	stopChan  chan struct{}
	done      chan struct{}
	err       error
	metrics   *syncutil.Value[Metrics]
	state     TagState
	wg        sync.WaitGroup
	stateMu   syncutil.RWMutex
	stopOnce  sync.Once
	started   atomic.Bool
	running   atomic.Bool
}

// NewMonitor creates a monitor for an initialized session. A nil config
// selects DefaultConfig.
func NewMonitor(session *ntag21x.Session, config *Config, callbacks Callbacks) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		session:   session,
		config:    config,
		callbacks: callbacks,
		requests:  make(chan request),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		metrics:   syncutil.NewValue(Metrics{}),
	}
}

// SetRecoverer installs the recovery strategy used after a fatal error or
// a host sleep. Without one, a fatal error stops the monitor.
func (m *Monitor) SetRecoverer(r Recoverer) {
	m.recoverer = r
}

// Start launches the polling goroutine. A monitor can be started once.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return err
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	m.running.Store(true)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(m.done)
		defer m.running.Store(false)
		m.err = m.run(ctx)
	}()
	return nil
}

// Stop ends polling and waits for the goroutine to exit. An exchange in
// progress completes first.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
}

// Done is closed when the polling goroutine exits.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that ended polling: nil after Stop, the context
// error after cancellation, or the fatal error that could not be recovered.
// It is only meaningful after Done is closed.
func (m *Monitor) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Metrics returns a snapshot of the poll counters.
func (m *Monitor) Metrics() Metrics {
	return m.metrics.Load()
}

// State returns the current tag state
func (m *Monitor) State() TagState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Do runs fn with the session on the monitor goroutine, between two polls,
// and returns its error. If ctx ends while fn runs, Do returns early but fn
// still runs to completion.
func (m *Monitor) Do(ctx context.Context, fn func(*ntag21x.Session) error) error {
	if !m.running.Load() {
		return ErrNotRunning
	}

	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case m.requests <- req:
	case <-m.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	// Perform immediate poll before entering ticker loop for responsive startup
	last := time.Now()
	if err := m.poll(ctx, last); err != nil {
		return err
	}

	for {
		select {
		case <-m.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case req := <-m.requests:
			req.done <- req.fn(m.session)
		case <-ticker.C:
			now := time.Now()
			slept := m.config.SleepRecovery.DetectSleep(now.Sub(last), m.config.PollInterval)
			if slept && m.recoverer != nil {
				if err := m.recover(ctx, errors.New("host sleep detected")); err != nil {
					return err
				}
			}
			last = now
			if err := m.poll(ctx, now); err != nil {
				return err
			}
		}
	}
}

// poll runs one cycle and returns an error only when polling must stop.
func (m *Monitor) poll(ctx context.Context, now time.Time) error {
	var err error
	if m.State().Present() {
		err = m.checkPresence(now)
	} else {
		err = m.search(now)
	}
	latency := time.Since(now)

	fatal := ntag21x.IsFatal(err)
	m.metrics.Update(func(mt Metrics) Metrics {
		mt.PollCycles++
		mt.LastPollLatency = latency
		if err != nil {
			mt.PollErrors++
		}
		return mt
	})

	if !fatal {
		return nil
	}
	return m.recover(ctx, err)
}

// search looks for a new tag. An empty field is not an error.
func (m *Monitor) search(now time.Time) error {
	tag, err := m.session.Search(0)
	if err != nil {
		if ntag21x.IsFatal(err) {
			return err
		}
		return nil
	}
	m.detected(tag, now)
	return nil
}

// checkPresence reads pages 0-3 and compares the serial number. On failure
// the tag is selected again before it counts as missing.
func (m *Monitor) checkPresence(now time.Time) error {
	current := m.State().Tag

	data, err := m.session.ReadFourPages(0)
	if err == nil && sameSerial(data, current.UID) {
		m.seen(current, now)
		return nil
	}
	if ntag21x.IsFatal(err) {
		return err
	}

	tag, serr := m.session.Search(0)
	switch {
	case serr == nil && tag.UID == current.UID:
		m.seen(tag, now)
		return nil
	case serr == nil:
		m.removed()
		m.detected(tag, now)
		return nil
	case ntag21x.IsFatal(serr):
		return serr
	}

	m.stateMu.Lock()
	expired := m.state.TransitionToMissing(now, m.config.RemovalTimeout)
	m.stateMu.Unlock()
	if expired {
		m.removed()
	}
	if err == nil {
		// page 0 answered with a different serial
		return nil
	}
	return err
}

// sameSerial compares the UID held in pages 0-3 with uid. Page 0 holds
// UID bytes 0-2 and BCC0, page 1 UID bytes 3-6.
func sameSerial(pages [16]byte, uid [7]byte) bool {
	return bytes.Equal(pages[0:3], uid[0:3]) && bytes.Equal(pages[4:8], uid[3:7])
}

func (m *Monitor) seen(tag ntag21x.Tag, now time.Time) {
	m.stateMu.Lock()
	m.state.TransitionToPresent(tag, now)
	m.stateMu.Unlock()
}

func (m *Monitor) detected(tag ntag21x.Tag, now time.Time) {
	m.seen(tag, now)
	m.metrics.Update(func(mt Metrics) Metrics {
		mt.TagsDetected++
		return mt
	})
	if m.callbacks.OnTagDetected != nil {
		m.callbacks.OnTagDetected(tag)
	}
}

func (m *Monitor) removed() {
	m.stateMu.Lock()
	m.state.TransitionToIdle()
	m.stateMu.Unlock()
	m.metrics.Update(func(mt Metrics) Metrics {
		mt.TagsRemoved++
		return mt
	})
	if m.callbacks.OnTagRemoved != nil {
		m.callbacks.OnTagRemoved()
	}
}

// recover runs the recoverer after cause. A tag that was present is
// reported removed: the reinitialized reader has to select it again.
func (m *Monitor) recover(ctx context.Context, cause error) error {
	if m.recoverer == nil {
		return cause
	}
	if err := m.recoverer.AttemptRecovery(ctx); err != nil {
		return errors.Join(cause, err)
	}
	m.metrics.Update(func(mt Metrics) Metrics {
		mt.Recoveries++
		return mt
	})
	if m.State().Present() {
		m.removed()
	}
	return nil
}
