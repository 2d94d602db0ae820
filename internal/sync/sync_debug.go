//go:build deadlock

// Package sync provides the lock types used by the hub and publisher.
// This build wraps go-deadlock so that lock-order inversions and long waits
// between Start/Stop and broadcast paths are reported.
package sync

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// Mutex is a mutual exclusion lock with deadlock detection.
type Mutex = deadlock.Mutex

// RWMutex is a reader/writer mutual exclusion lock with deadlock detection.
type RWMutex = deadlock.RWMutex

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// Once is the standard sync.Once.
type Once = sync.Once

func init() {
	// Publisher.Stop legitimately holds its lock for up to one tick plus the
	// shutdown timeout, so keep this well above both.
	deadlock.Opts.DeadlockTimeout = 30 * time.Second

	if os.Getenv("STOCKCHAT_NO_DEADLOCK_DETECT") != "" {
		deadlock.Opts.Disable = true
		return
	}

	deadlock.Opts.PrintAllCurrentGoroutines = true
	log.Warn().Msg("deadlock detection enabled")
}
