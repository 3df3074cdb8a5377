// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/meshseal-foundation/meshseal/cmd/meshseal/cli"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

func keygenCommand() *cli.Command {
	var keysDir string
	var runtimeID string
	var seal bool

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an Ed25519 runtime keypair",
		Description: "Generates an Ed25519 keypair for a runtime identity and writes it\n" +
			"to the keystore directory. With --seal the private key is encrypted\n" +
			"under a passphrase before it touches disk.",
		Usage: "meshseal keygen --keys <dir> --id <runtime-id> [--seal]",
		Examples: []cli.Example{
			{
				Description: "Generate a plaintext keypair for a gateway",
				Command:     "meshseal keygen --keys /var/lib/meshseal/keys --id gateway-1",
			},
			{
				Description: "Generate a passphrase-sealed keypair",
				Command:     "meshseal keygen --keys /var/lib/meshseal/keys --id gateway-1 --seal",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flags.StringVar(&keysDir, "keys", "", "keystore directory (required)")
			flags.StringVar(&runtimeID, "id", "", "runtime identity for the keypair (required)")
			flags.BoolVar(&seal, "seal", false, "encrypt the private key under a passphrase")
			return flags
		},
		Run: func(args []string) error {
			if keysDir == "" || runtimeID == "" {
				return fmt.Errorf("--keys and --id are required")
			}
			if err := os.MkdirAll(keysDir, 0700); err != nil {
				return fmt.Errorf("creating keystore directory: %w", err)
			}

			public, private, err := sign.GenerateKeypair()
			if err != nil {
				return fmt.Errorf("generating keypair: %w", err)
			}

			if seal {
				passphrase, err := cli.ReadPassphrase(true)
				if err != nil {
					return err
				}
				if err := sign.SaveSealedKeypair(keysDir, runtimeID, public, private, passphrase); err != nil {
					return err
				}
			} else {
				if err := sign.SaveKeypair(keysDir, runtimeID, public, private); err != nil {
					return err
				}
			}

			logger := cli.NewCommandLogger().With("command", "keygen")
			logger.Info("keypair generated",
				"runtime_id", runtimeID,
				"keystore", keysDir,
				"sealed", seal)
			return nil
		},
	}
}
