//go:build !deadlock

// Package sync provides the lock types used by the hub and publisher.
// Build with -tags deadlock to swap in go-deadlock for lock-order diagnostics.
package sync

import "sync"

// Mutex is the standard sync.Mutex in release builds.
type Mutex = sync.Mutex

// RWMutex is the standard sync.RWMutex in release builds.
type RWMutex = sync.RWMutex

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// Once is the standard sync.Once.
type Once = sync.Once
