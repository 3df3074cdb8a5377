// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the current time for testability.
// Production code injects Real(); tests inject a Fake with
// deterministic control. Envelope and hop timestamps are the only
// time reads in meshseal, so the interface is deliberately minimal.
package clock

import "time"

// Clock supplies the current time. Every production function that
// would call time.Now should accept a Clock instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the system clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
