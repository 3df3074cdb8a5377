// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"os"

	"github.com/meshseal-foundation/meshseal/cmd/meshseal/cli"
	"github.com/meshseal-foundation/meshseal/lib/config"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

// loadConfig loads configuration from the --config flag value, or
// from MESHSEAL_CONFIG when the flag is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// readInput reads the whole content of path, or stdin when path is
// "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// writeOutput writes data to path, or stdout when path is empty or
// "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// loadSigningKey loads a runtime's private key from the keystore
// directory, prompting for a passphrase when the key is sealed.
func loadSigningKey(dir, runtimeID string) (ed25519.PrivateKey, error) {
	if sign.HasSealedKey(dir, runtimeID) {
		passphrase, err := cli.ReadPassphrase(false)
		if err != nil {
			return nil, err
		}
		return sign.LoadSealedPrivateKey(dir, runtimeID, passphrase)
	}
	return sign.LoadPrivateKey(dir, runtimeID)
}
