// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope implements the signed message envelope: an
// immutable wrapper binding routing metadata (realm, runtime, bus,
// trace, causality, tenant, timestamp) and a payload hash to an
// Ed25519 signature.
//
// Envelopes are constructed once via NewSigned, which hashes the
// payload, signs the canonical signing content, and validates the
// identity invariants. They are never mutated afterwards. Observers
// may attach an ObservabilityMetadata block, but that block is
// untrusted by construction: it is a separate type, deliberately
// excluded from the signed content, and only constrained to claim the
// envelope's own realm.
//
// Verification is two checks in strict order: recompute the payload
// hash and compare (integrity), then verify the signature over the
// canonical signing bytes (authenticity). Key lookup fails closed:
// an unknown signer is an error, not a false verification result.
package envelope
