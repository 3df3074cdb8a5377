// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sign

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Keystore file suffixes. A runtime's keys live at
// <dir>/<runtime-id>.key (private, 0600) and <dir>/<runtime-id>.pub
// (public, 0644). A passphrase-sealed private key uses
// <dir>/<runtime-id>.key.age instead of the plain .key file.
const (
	privateKeySuffix = ".key"
	publicKeySuffix  = ".pub"
	sealedKeySuffix  = ".key.age"
)

// GenerateKeypair creates a new Ed25519 keypair for a runtime
// identity.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// SaveKeypair writes a runtime's keypair to the keystore directory.
// The private key file has 0600 permissions; the public key file has
// 0644.
func SaveKeypair(dir, runtimeID string, public ed25519.PublicKey, private ed25519.PrivateKey) error {
	if err := validateRuntimeID(runtimeID); err != nil {
		return err
	}

	privatePath := filepath.Join(dir, runtimeID+privateKeySuffix)
	if err := os.WriteFile(privatePath, private, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	publicPath := filepath.Join(dir, runtimeID+publicKeySuffix)
	if err := os.WriteFile(publicPath, public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	return nil
}

// SaveSealedKeypair writes a keypair with the private key sealed
// under a passphrase. The public key is stored in the clear as usual.
func SaveSealedKeypair(dir, runtimeID string, public ed25519.PublicKey, private ed25519.PrivateKey, passphrase string) error {
	if err := validateRuntimeID(runtimeID); err != nil {
		return err
	}

	sealed, err := SealPrivateKey(private, passphrase)
	if err != nil {
		return err
	}

	sealedPath := filepath.Join(dir, runtimeID+sealedKeySuffix)
	if err := os.WriteFile(sealedPath, []byte(sealed), 0600); err != nil {
		return fmt.Errorf("writing sealed private key: %w", err)
	}

	publicPath := filepath.Join(dir, runtimeID+publicKeySuffix)
	if err := os.WriteFile(publicPath, public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	return nil
}

// LoadPrivateKey loads a runtime's plain private key from the
// keystore directory. Returns an error if the file is missing or has
// an unexpected size.
func LoadPrivateKey(dir, runtimeID string) (ed25519.PrivateKey, error) {
	if err := validateRuntimeID(runtimeID); err != nil {
		return nil, err
	}

	privatePath := filepath.Join(dir, runtimeID+privateKeySuffix)
	privateBytes, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d",
			len(privateBytes), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(privateBytes), nil
}

// LoadSealedPrivateKey loads and unseals a passphrase-sealed private
// key from the keystore directory.
func LoadSealedPrivateKey(dir, runtimeID, passphrase string) (ed25519.PrivateKey, error) {
	if err := validateRuntimeID(runtimeID); err != nil {
		return nil, err
	}

	sealedPath := filepath.Join(dir, runtimeID+sealedKeySuffix)
	sealedBytes, err := os.ReadFile(sealedPath)
	if err != nil {
		return nil, fmt.Errorf("reading sealed private key: %w", err)
	}
	return UnsealPrivateKey(string(sealedBytes), passphrase)
}

// HasSealedKey reports whether the keystore holds a sealed (rather
// than plain) private key for the runtime.
func HasSealedKey(dir, runtimeID string) bool {
	if err := validateRuntimeID(runtimeID); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, runtimeID+sealedKeySuffix))
	return err == nil
}

// validateRuntimeID rejects identities that would escape the keystore
// directory when used as a filename.
func validateRuntimeID(runtimeID string) error {
	if runtimeID == "" {
		return fmt.Errorf("sign: runtime ID is empty")
	}
	if strings.ContainsAny(runtimeID, `/\`) || strings.Contains(runtimeID, "..") {
		return fmt.Errorf("sign: runtime ID %q contains path characters", runtimeID)
	}
	return nil
}
