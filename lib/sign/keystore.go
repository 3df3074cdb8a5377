// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sign

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// MemoryKeystore is a map-backed KeyProvider for tests and bootstrap
// wiring. The zero value is not usable; create one with
// NewMemoryKeystore.
type MemoryKeystore struct {
	keys map[string]ed25519.PublicKey
}

// NewMemoryKeystore creates an empty in-memory key provider.
func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{keys: make(map[string]ed25519.PublicKey)}
}

// Add registers a public key for a runtime ID, replacing any previous
// key.
func (store *MemoryKeystore) Add(runtimeID string, public ed25519.PublicKey) {
	store.keys[runtimeID] = public
}

// PublicKey implements KeyProvider.
func (store *MemoryKeystore) PublicKey(runtimeID string) (ed25519.PublicKey, error) {
	public, ok := store.keys[runtimeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, runtimeID)
	}
	return public, nil
}

// DirKeystore is a KeyProvider backed by a keystore directory of
// <runtime-id>.pub files (raw 32-byte Ed25519 public keys, as written
// by SaveKeypair). Keys are read on every lookup so newly provisioned
// runtimes are visible without a restart.
type DirKeystore struct {
	// Dir is the keystore directory.
	Dir string
}

// PublicKey implements KeyProvider. A missing key file fails closed
// with ErrKeyNotFound; any other read failure is surfaced as its own
// error so corruption is never mistaken for an unknown identity.
func (store *DirKeystore) PublicKey(runtimeID string) (ed25519.PublicKey, error) {
	if err := validateRuntimeID(runtimeID); err != nil {
		return nil, err
	}

	publicPath := filepath.Join(store.Dir, runtimeID+publicKeySuffix)
	publicBytes, err := os.ReadFile(publicPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, runtimeID)
		}
		return nil, fmt.Errorf("reading public key for %q: %w", runtimeID, err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key for %q has %d bytes, want %d",
			runtimeID, len(publicBytes), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(publicBytes), nil
}
