// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sign

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
)

// SealPrivateKey encrypts an Ed25519 private key under a passphrase
// using an age scrypt recipient. The ciphertext is returned base64
// encoded, suitable for storage as a keystore file. Sealing protects
// signing keys at rest on operator machines; it is not a substitute
// for filesystem permissions.
func SealPrivateKey(private ed25519.PrivateKey, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("sign: sealing passphrase is empty")
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return "", fmt.Errorf("creating scrypt recipient: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(private); err != nil {
		return "", fmt.Errorf("sealing private key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// UnsealPrivateKey decrypts a sealed private key produced by
// SealPrivateKey. A wrong passphrase surfaces as a decryption error.
func UnsealPrivateKey(sealed, passphrase string) (ed25519.PrivateKey, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	rawCiphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decoding sealed key: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(rawCiphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("unsealing private key: %w", err)
	}

	private, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading unsealed private key: %w", err)
	}
	if len(private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unsealed private key has %d bytes, want %d",
			len(private), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(private), nil
}
