// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/meshseal-foundation/meshseal/cmd/meshseal/cli"
	"github.com/meshseal-foundation/meshseal/lib/archive"
	"github.com/meshseal-foundation/meshseal/lib/sigchain"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

func chainCommand() *cli.Command {
	return &cli.Command{
		Name:    "chain",
		Summary: "Verify signature chains from audit archives",
		Subcommands: []*cli.Command{
			chainVerifyCommand(),
		},
	}
}

func chainVerifyCommand() *cli.Command {
	var configPath string
	var keyFile string

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify every chain in an audit archive",
		Description: "Reads an audit archive and verifies each record: the envelope\n" +
			"signature, the chain's hop linkage and policy compliance, and every\n" +
			"hop signature. Anomaly findings and the trust score are reported\n" +
			"per chain. The command fails when any record fails verification.",
		Usage: "meshseal chain verify [--config <file>] [--key-file <file>] <archive>",
		Examples: []cli.Example{
			{
				Description: "Verify a relay's daily archive",
				Command:     "meshseal chain verify --config meshseal.yaml audit-2026-03-01.msar",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file (default MESHSEAL_CONFIG)")
			flags.StringVar(&keyFile, "key-file", "", "base64 sealing key for sealed archives")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one archive file required")
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			decoded, err := openArchive(args[0], keyFile)
			if err != nil {
				return err
			}
			if decoded.Realm != cfg.Realm {
				return fmt.Errorf("archive realm %q does not match configured realm %q",
					decoded.Realm, cfg.Realm)
			}

			logger := cli.NewCommandLogger().With("command", "chain/verify")
			keystore := &sign.DirKeystore{Dir: cfg.Keystore.Dir}
			policy := cfg.ChainPolicy()

			failures := 0
			for index, record := range decoded.Records {
				if err := verifyRecord(record, policy, keystore, logger); err != nil {
					failures++
					fmt.Printf("record %d (trace %s): FAIL: %v\n",
						index, record.Envelope.TraceID, err)
					continue
				}
				fmt.Printf("record %d (trace %s): OK\n", index, record.Envelope.TraceID)
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d records failed verification",
					failures, len(decoded.Records))
			}
			logger.Info("archive verified", "records", len(decoded.Records))
			return nil
		},
	}
}

// verifyRecord runs the full verification stack for one archived
// envelope and its chain: envelope signature, chain integrity under
// the configured policy, hop signatures, and anomaly detection.
func verifyRecord(record archive.Record, policy sigchain.Policy, keystore sign.KeyProvider, logger *slog.Logger) error {
	verified, err := record.Envelope.VerifySignature(keystore)
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if !verified {
		return fmt.Errorf("envelope signature by %q does not verify", record.Envelope.RuntimeID)
	}

	chain := record.Chain
	if chain == nil {
		return fmt.Errorf("no signature chain")
	}
	chain.SetPolicy(policy)

	valid, err := chain.ValidateIntegrity()
	if err != nil {
		return fmt.Errorf("chain integrity: %w", err)
	}
	if !valid {
		return fmt.Errorf("chain status %s", chain.Status)
	}

	if err := chain.VerifyHopSignatures(keystore); err != nil {
		return fmt.Errorf("hop signatures: %w", err)
	}

	for _, finding := range chain.DetectAnomalies() {
		logger.Warn("chain anomaly",
			"chain_id", chain.ChainID,
			"finding", finding)
	}

	score := chain.TrustScore(policy.TrustedNodes)
	fmt.Printf("  chain %s: %d hops, trust %.2f, complete route %v\n",
		chain.ChainID, len(chain.Hops), score, chain.HasCompleteRoute())
	return nil
}

// openArchive reads a plaintext or sealed archive from path. Sealed
// archives require a key file holding the base64 sealing key.
func openArchive(path, keyFile string) (*archive.Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if keyFile == "" {
		return archive.Read(file)
	}

	key, err := readArchiveKey(keyFile)
	if err != nil {
		return nil, err
	}
	return archive.ReadSealed(file, key)
}
