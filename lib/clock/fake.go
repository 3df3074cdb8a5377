// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// FakeClock is a Clock under test control. Not safe for concurrent
// use; tests own a single goroutine.
type FakeClock struct {
	now time.Time
}

// Fake returns a FakeClock frozen at the given start time.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (f *FakeClock) Now() time.Time { return f.now }

// Advance moves the fake time forward by d. Negative durations move
// it backward, which tests use to simulate clock skew between nodes.
func (f *FakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// Set jumps the fake time to an absolute instant.
func (f *FakeClock) Set(now time.Time) {
	f.now = now
}
