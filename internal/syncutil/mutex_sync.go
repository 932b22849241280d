//go:build !deadlock

// Package syncutil holds the locks shared by the codec, its test doubles and
// the polling monitor. Plain builds use the sync package. Building with
// -tags=deadlock swaps in github.com/sasha-s/go-deadlock so lock-order
// mistakes between a monitor goroutine and its callbacks surface in tests.
package syncutil

import "sync"

// Mutex is sync.Mutex in plain builds.
//
//nolint:gocritic // embedding exposes Lock/Unlock
type Mutex struct {
	sync.Mutex
}

// RWMutex is sync.RWMutex in plain builds.
//
//nolint:gocritic // embedding exposes Lock/Unlock/RLock/RUnlock
type RWMutex struct {
	sync.RWMutex
}

// DeadlockDetection reports whether the build uses go-deadlock.
const DeadlockDetection = false
