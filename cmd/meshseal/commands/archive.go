// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/meshseal-foundation/meshseal/cmd/meshseal/cli"
	"github.com/meshseal-foundation/meshseal/lib/archive"
)

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:    "archive",
		Summary: "Inspect and manage audit archives",
		Subcommands: []*cli.Command{
			archiveInspectCommand(),
			archiveKeygenCommand(),
		},
	}
}

func archiveInspectCommand() *cli.Command {
	var keyFile string

	return &cli.Command{
		Name:    "inspect",
		Summary: "Show an archive's format metadata and contents",
		Description: "Prints the archive header (format version, compression, sealing).\n" +
			"For plaintext archives, or sealed archives when --key-file is given,\n" +
			"the record listing is printed too.",
		Usage: "meshseal archive inspect [--key-file <file>] <archive>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flags.StringVar(&keyFile, "key-file", "", "base64 sealing key for sealed archives")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one archive file required")
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			info, err := archive.Inspect(file)
			if err != nil {
				return err
			}

			fmt.Printf("version:     %d\n", info.Version)
			fmt.Printf("compression: %s\n", info.Compression)
			fmt.Printf("sealed:      %v\n", info.Sealed)
			fmt.Printf("body size:   %d bytes (uncompressed)\n", info.UncompressedSize)

			if info.Sealed && keyFile == "" {
				return nil
			}

			decoded, err := openArchive(args[0], keyFile)
			if err != nil {
				return err
			}

			fmt.Printf("realm:       %s\n", decoded.Realm)
			fmt.Printf("created:     %s\n", decoded.CreatedAt)
			fmt.Printf("records:     %d\n", len(decoded.Records))
			for index, record := range decoded.Records {
				hops := 0
				status := "-"
				if record.Chain != nil {
					hops = len(record.Chain.Hops)
					status = string(record.Chain.Status)
				}
				fmt.Printf("  %d: trace %s, signer %s, %d hops, status %s\n",
					index, record.Envelope.TraceID, record.Envelope.RuntimeID, hops, status)
			}
			return nil
		},
	}
}

func archiveKeygenCommand() *cli.Command {
	var outPath string

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a random archive sealing key",
		Usage:   "meshseal archive keygen [--out <file>]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flags.StringVar(&outPath, "out", "", "key file to write (default stdout)")
			return flags
		},
		Run: func(args []string) error {
			key, err := archive.NewKey()
			if err != nil {
				return err
			}
			encoded := base64.StdEncoding.EncodeToString(key) + "\n"
			if outPath == "" || outPath == "-" {
				_, err := os.Stdout.WriteString(encoded)
				return err
			}
			// The key is a secret: owner-only permissions.
			return os.WriteFile(outPath, []byte(encoded), 0600)
		},
	}
}

// readArchiveKey reads a base64 sealing key from a key file.
func readArchiveKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding key file %s: %w", path, err)
	}
	if len(key) != archive.KeySize {
		return nil, fmt.Errorf("key file %s: key is %d bytes, want %d", path, len(key), archive.KeySize)
	}
	return key, nil
}
