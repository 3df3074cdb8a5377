// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package canonical produces deterministic JSON bytes for hashing and
// signing. The encoding is the on-the-wire signing format: sorted map
// keys, compact separators, no HTML escaping, no trailing newline.
// Two logically equal values always encode to identical bytes, so
// signatures verify bit-exactly across implementations.
package canonical
