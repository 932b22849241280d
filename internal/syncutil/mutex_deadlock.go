//go:build deadlock

// Package syncutil holds the locks shared by the codec, its test doubles and
// the polling monitor. This build uses github.com/sasha-s/go-deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

func init() {
	// tag exchanges over a slow UART can hold a lock for a few seconds
	deadlock.Opts.DeadlockTimeout = 10 * time.Second
}

// Mutex is deadlock.Mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is deadlock.RWMutex.
type RWMutex struct {
	deadlock.RWMutex
}

// DeadlockDetection reports whether the build uses go-deadlock.
const DeadlockDetection = true
