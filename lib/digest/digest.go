// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes the 256-bit BLAKE3 content hashes used
// throughout meshseal: payload hashes bound into envelope signatures,
// hop-signature hashes linking chain hops, and whole-chain hashes.
// All hashes are hex-encoded lowercase, 64 characters.
package digest

import (
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/zeebo/blake3"

	"github.com/meshseal-foundation/meshseal/lib/canonical"
)

// Size is the byte length of every meshseal digest.
const Size = 32

// Hash is a 32-byte BLAKE3 digest.
type Hash [Size]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes produce different digests in
// different contexts, so a hop-signature hash can never collide with
// a payload hash.
type domainKey [32]byte

// Domain separation keys. These are protocol constants; changing
// them invalidates every existing hash in that domain. The byte
// values are the ASCII domain name, zero-padded to 32 bytes, so the
// keys are readable in hex dumps.
var (
	payloadDomainKey = domainKey{
		'm', 'e', 's', 'h', 's', 'e', 'a', 'l', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	hopDomainKey = domainKey{
		'm', 'e', 's', 'h', 's', 'e', 'a', 'l', '.', 'h', 'o', 'p',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	chainDomainKey = domainKey{
		'm', 'e', 's', 'h', 's', 'e', 'a', 'l', '.', 'c', 'h', 'a', 'i', 'n',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashPayload computes the payload-domain hash of an arbitrary
// payload and returns it hex-encoded. The payload is first brought
// into a stable shape: maps and structs hash as-is, everything else
// (primitives, lists, nil) is wrapped in {"value": payload} so the
// hash of a bare value is well-defined. The shaped payload is then
// canonically encoded, so the digest is independent of map insertion
// order and Go type spelling.
//
// Fails with an error wrapping canonical.ErrUnencodable when the
// payload cannot be represented as JSON.
func HashPayload(payload any) (string, error) {
	encoded, err := canonical.Encode(shapePayload(payload))
	if err != nil {
		return "", fmt.Errorf("hashing payload: %w", err)
	}
	return Format(keyedHash(payloadDomainKey, encoded)), nil
}

// HashHop computes the hop-domain hash of a hop's signature value.
// Chains link hops by storing this digest of the previous hop's
// signature.
func HashHop(signatureValue []byte) Hash {
	return keyedHash(hopDomainKey, signatureValue)
}

// HashChain computes the chain-domain hash over the canonical
// encoding of a chain's ordered hop list.
func HashChain(encodedHops []byte) Hash {
	return keyedHash(chainDomainKey, encodedHops)
}

// Format returns the hex-encoded string representation of a hash:
// lowercase, 64 characters. This is the canonical form stored in
// envelopes, chains, and logs.
func Format(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// Parse parses a 64-character hex string into a Hash.
func Parse(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != Size {
		return hash, fmt.Errorf("digest is %d bytes, want %d", len(decoded), Size)
	}
	copy(hash[:], decoded)
	return hash, nil
}

// shapePayload applies the hash-stability wrapping rule: maps and
// structs pass through, everything else becomes {"value": payload}.
func shapePayload(payload any) any {
	value := reflect.ValueOf(payload)
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			break
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Map, reflect.Struct:
		return payload
	default:
		return map[string]any{"value": payload}
	}
}

// keyedHash computes a BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// domainKey type rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
