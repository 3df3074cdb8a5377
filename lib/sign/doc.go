// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package sign provides Ed25519 signing and verification for
// envelopes and chain hops, plus key management: keypair files in a
// keystore directory, passphrase-sealed private keys, and the
// KeyProvider lookup interface consumed by verification.
//
// Key lookup fails closed: an unknown runtime ID is an error
// (ErrKeyNotFound), never a silent "unverified" result.
package sign
