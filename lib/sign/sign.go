// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

// Algorithm is the signature algorithm name recorded in envelopes and
// hops. Recorded explicitly for forward compatibility; today it is
// always Ed25519.
const Algorithm = "ed25519"

// SignatureSize is the fixed size of an Ed25519 signature.
const SignatureSize = ed25519.SignatureSize // 64 bytes

// ErrKeyNotFound is returned by KeyProvider implementations when no
// public key is registered for a runtime ID. Callers must treat this
// as "untrusted" and surface it, never as a plain verification
// failure.
var ErrKeyNotFound = errors.New("sign: no public key found for runtime")

// KeyProvider looks up the Ed25519 public key for a runtime identity.
// It is a synchronous external collaborator; implementations decide
// where keys live (memory, keystore directory, remote registry).
type KeyProvider interface {
	// PublicKey returns the public key for runtimeID, or an error
	// wrapping ErrKeyNotFound when the identity is unknown.
	PublicKey(runtimeID string) (ed25519.PublicKey, error)
}

// Sign signs message with the given private key and returns the
// 64-byte Ed25519 signature. Returns an error rather than panicking
// when the key has the wrong length.
func Sign(privateKey ed25519.PrivateKey, message []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("sign: private key has %d bytes, want %d",
			len(privateKey), ed25519.PrivateKeySize)
	}
	return ed25519.Sign(privateKey, message), nil
}

// Verify reports whether signature is a valid Ed25519 signature of
// message under publicKey. A malformed key or signature verifies as
// false, never panics.
func Verify(publicKey ed25519.PublicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// EncodeSignature returns the base64 string form of a signature, the
// representation stored in envelopes and hops.
func EncodeSignature(signature []byte) string {
	return base64.StdEncoding.EncodeToString(signature)
}

// DecodeSignature decodes the base64 string form of a signature.
func DecodeSignature(encoded string) ([]byte, error) {
	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("sign: decoding signature: %w", err)
	}
	return signature, nil
}
