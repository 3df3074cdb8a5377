// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package sigchain implements hop-ordered, tamper-evident signature
// chains: each node that processes an envelope appends a signed hop,
// linked to the previous hop by a hash of its signature value.
//
// A chain carries a validation status (INCOMPLETE, VALID, INVALID,
// TAMPERED) that changes only through explicit ValidateIntegrity
// calls. TAMPERED is reserved for broken cryptographic linkage
// (corruption of a recorded hop), while INVALID covers structural and
// policy violations, so callers can alert security on the former and
// merely reject on the latter.
//
// Chains are mutable aggregates with no internal locking: one writer
// per chain, coordinated by the caller.
package sigchain
